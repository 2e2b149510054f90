package usbhost

import "github.com/pkg/errors"

// parseConfiguration walks the configuration descriptor already sitting in
// d.xferBuffer[:d.cfgBufLen], records the configuration's own attributes,
// and instantiates+configures every interface's endpoints as local Pipes,
// probing the driver registry for each interface along the way. Mirrors
// usb_device_parse_cfgdesc/usb_device_parse_ifacedesc/usb_device_parse_epdesc.
//
// On any failure partway through, endpoints already configured for the
// interface in progress are released before returning, so a caller never
// has to reason about partially-configured interfaces.
func (s *Stack) parseConfiguration(d *Device) error {
	buf := d.xferBuffer[:d.cfgBufLen]
	if len(buf) < CfgDescSize {
		return errors.Wrap(ErrDescriptorTooLong, "configuration descriptor header")
	}

	d.CfgValue = CfgDescGetBConfigurationValue(buf)
	attrs := CfgDescGetBmAttributes(buf)
	d.SelfPwrd = attrs&CfgAttrSelfPowered != 0
	d.RemoteWkp = attrs&CfgAttrRemoteWakeup != 0
	d.MaxPower = CfgDescGetBMaxPower(buf)

	numIfaces := CfgDescGetBNumInterfaces(buf)
	if numIfaces > MaxInterfacesPerDevice {
		return errors.Wrap(ErrDescriptorTooLong, "too many interfaces for fixed capacity")
	}
	if tmpl := d.cfgTemplate; tmpl != nil && tmpl.NumInterfaces != 0 && numIfaces != tmpl.NumInterfaces {
		return errors.Wrap(ErrConfigNotFound, "interface count does not match template")
	}
	d.NumIfaces = numIfaces

	rest := buf[CfgDescSize:]
	for ifaceIdx := uint8(0); ifaceIdx < numIfaces; ifaceIdx++ {
		var ok bool
		rest, ok = goToNextDesc(rest, DescriptorTypeInterface)
		if !ok || len(rest) < IfaceDescSize {
			return errors.Wrap(ErrInvalidParam, "missing interface descriptor")
		}
		ifaceBuf := rest
		iface := &d.Interfaces[ifaceIdx]
		iface.reset()
		iface.Class = IfaceDescGetBInterfaceClass(ifaceBuf)
		iface.SubClass = IfaceDescGetBInterfaceSubClass(ifaceBuf)
		iface.Protocol = IfaceDescGetBInterfaceProtocol(ifaceBuf)

		numEps := IfaceDescGetBNumEndpoints(ifaceBuf)
		if numEps > MaxEndpointsPerInterface {
			return errors.Wrap(ErrDescriptorTooLong, "too many endpoints for fixed capacity")
		}
		if tmpl := d.cfgTemplate; tmpl != nil && tmpl.NumInterfaces != 0 {
			if want := tmpl.endpointsFor(ifaceIdx); want >= 0 && int(numEps) != want {
				return errors.Wrap(ErrConfigNotFound, "endpoint count does not match template")
			}
		}

		if driverIdx := s.registry.Probe(d, ifaceBuf); driverIdx >= 0 {
			iface.DriverIdx = driverIdx
		} else {
			iface.DriverIdx = NoDriver
		}

		epBuf := ifaceBuf[IfaceDescSize:]
		for e := uint8(0); e < numEps; e++ {
			epBuf, ok = goToNextDesc(epBuf, DescriptorTypeEndpoint)
			if !ok || len(epBuf) < EpDescSize {
				iface.releaseEndpoints(s.pp)
				return errors.Wrap(ErrInvalidParam, "missing endpoint descriptor")
			}
			addr := EpDescGetBEndpointAddress(epBuf)
			p := Pipe{
				Number:   addr & 0x0F,
				Dir:      endpointDir(addr),
				Type:     transferTypeOf(EpDescGetBmAttributes(epBuf)),
				MPS:      EpDescGetWMaxPacketSize(epBuf),
				Interval: EpDescGetBInterval(epBuf),
			}
			if err := s.pp.Configure(d, &p); err != nil {
				iface.releaseEndpoints(s.pp)
				return errors.Wrap(err, "endpoint configuration")
			}
			iface.Endpoints[e] = p
			iface.NumEps = e + 1
			epBuf = epBuf[EpDescSize:]
		}

		if iface.DriverIdx != NoDriver {
			if drv := s.registry.at(iface.DriverIdx); drv != nil {
				if err := drv.Assign(s, d, ifaceIdx, ifaceBuf); err != nil {
					iface.releaseEndpoints(s.pp)
					iface.reset()
					return errors.Wrap(err, "driver assign")
				}
			}
		}

		rest = ifaceBuf[IfaceDescSize:]
	}

	return nil
}

func endpointDir(addr uint8) Dir {
	if addr&EndpointDirectionIn != 0 {
		return DirIn
	}
	return DirOut
}
