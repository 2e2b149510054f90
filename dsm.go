package usbhost

// Device state machine (DSM): one function per State, dispatched every
// Stack.Run tick, ported state-for-state from the original firmware's
// usbd_state_run/_state_* functions. Each function either advances
// d.State/d.NextState directly or parks in StateWaitDelay/an in-flight
// ctrlRequest and relies on being called again next tick.

const (
	attachDebounceMs  = 100 // USB 2.0 section 7.1.7.3 attach debounce
	resetPulseMs      = 50  // minimum reset pulse width
	resetRecoveryMs   = 10  // section 9.2.6.2 reset recovery time
	addressRecoveryMs = 2   // section 9.2.6.3 SetAddress recovery time
	devDescProbeLen   = 8   // just enough of the device descriptor for bMaxPacketSize0
	defaultMPS0       = 8   // assumed control MPS before it is actually known
)

var stateFns = [stateCount]func(*Stack, *Device) Status{
	StateWaitDelay:    (*Stack).stateWaitDelay,
	StateDisconnected: (*Stack).stateDisconnected,
	StateAttached:     (*Stack).stateAttached,
	StatePowered:      (*Stack).statePowered,
	StateReset:        (*Stack).stateReset,
	StateDefault:      (*Stack).stateDefault,
	StateMPS:          (*Stack).stateMPS,
	StateAddress:      (*Stack).stateAddress,
	StateDevDesc:      (*Stack).stateDevDesc,
	StateCfgDescLen9:  (*Stack).stateCfgDescLen9,
	StateCfgDesc:      (*Stack).stateCfgDesc,
	StateSetCfg:       (*Stack).stateSetCfg,
	StateUnlock:       (*Stack).stateUnlock,
	StateConfigured:   (*Stack).stateConfigured,
	StateSuspended:    (*Stack).stateSuspended,
}

// updateDevice dispatches to the state function for d.State, mirroring
// usbd_state_run.
func (s *Stack) updateDevice(d *Device) Status {
	return stateFns[d.State](s, d)
}

// delayTo parks d in StateWaitDelay for delayMs milliseconds, then
// transitions to target; mirrors _set_delay followed by a state that sets
// next_state to target and state to USB_DEV_STATE_WAIT_DELAY.
func (s *Stack) delayTo(d *Device, target State, delayMs uint16) {
	d.NextState = target
	d.State = StateWaitDelay
	s.setDelay(d, delayMs)
}

// setState moves d directly into target with no delay, mirroring
// _update_state's state==next_state case.
func (s *Stack) setState(d *Device, target State) {
	d.State = target
	d.NextState = target
}

func (s *Stack) stateWaitDelay(d *Device) Status {
	if !s.delayElapsed(d) {
		return StatusXferWait
	}
	s.setState(d, d.NextState)
	return StatusXferDone
}

// stateDisconnected is idle: a disconnected slot is reclaimed by
// Stack.release, not driven forward by the DSM, but the state exists (as
// it did in the original enum) so a device can be parked here between
// detection and removal within the same tick.
func (s *Stack) stateDisconnected(d *Device) Status {
	return StatusOK
}

func (s *Stack) stateAttached(d *Device) Status {
	d.Status |= DevStatusConnected
	s.delayTo(d, StatePowered, attachDebounceMs)
	return StatusXferWait
}

// statePowered drives bus reset for d, but only once it holds the
// stack-wide zero-address lock: at most one device may occupy address 0
// at a time, so a device that cannot acquire the lock simply stays parked
// in Powered and retries next tick, serializing siblings that were
// attached in the same tick.
func (s *Stack) statePowered(d *Device) Status {
	if d.Status&DevStatusLockOnAddrZero == 0 {
		if s.addrZeroBusy {
			return StatusBusy
		}
		s.addrZeroBusy = true
		d.Status |= DevStatusLockOnAddrZero
	}
	s.portReset(d)
	s.delayTo(d, StateReset, resetPulseMs)
	return StatusXferWait
}

func (s *Stack) stateReset(d *Device) Status {
	status, err := s.portResetStatus(d)
	if status == StatusXferWait {
		return status
	}
	// The root HCI reports a finished reset as StatusOK; a hub driver
	// reports its SetPortFeature(PORT_RESET) request's StatusXferDone.
	if err != nil || (status != StatusOK && status != StatusXferDone) {
		return status
	}
	d.Speed = s.deviceSpeed(d)
	d.MPS = defaultMPS0
	s.delayTo(d, StateDefault, resetRecoveryMs)
	return StatusXferDone
}

// deviceSpeed reads d's negotiated speed from wherever it was actually
// reported: the root HCI for a device on the root port, or the parent
// HUB's own speed query for anything downstream, mirroring the state
// table's "read speed from HCI (root) or parent HUB (downstream)" entry
// action for Default.
func (s *Stack) deviceSpeed(d *Device) Speed {
	if d.ParentHub == ParentRoot {
		return s.hci.Speed()
	}
	hub := s.devices[d.ParentHub]
	if hub == nil || hub.Interfaces[0].DriverIdx == NoDriver {
		return SpeedInvalid
	}
	if drv, ok := s.registry.at(hub.Interfaces[0].DriverIdx).(HubDriver); ok {
		if speed, err := drv.GetSpeed(s, hub, d.ParentPort); err == nil {
			return speed
		}
	}
	return SpeedInvalid
}

// stateDefault reads the first 8 bytes of the device descriptor at
// address 0 to discover the real bMaxPacketSize0, mirroring the original's
// Default-state GetDescriptor(Device, length=8) probe.
func (s *Stack) stateDefault(d *Device) Status {
	req := getDescriptorRequest(DescriptorTypeDevice, 0, 0, devDescProbeLen)
	status := s.ctrlRequest(d, req, d.xferBuffer[:devDescProbeLen])
	if status == StatusXferWait {
		return status
	}
	if status != StatusXferDone {
		return status
	}
	d.MPS = DevDescGetBMaxPacketSize0(d.xferBuffer[:devDescProbeLen])
	s.setState(d, StateMPS)
	return StatusXferDone
}

// stateMPS re-issues port reset now that the real control MPS is known (a
// second reset is required by section 9.2.6.3 after discovering bMaxPacketSize0
// on anything but low speed), then proceeds to address assignment.
func (s *Stack) stateMPS(d *Device) Status {
	s.portReset(d)
	s.delayTo(d, StateAddress, resetPulseMs)
	return StatusXferWait
}

// stateAddress first waits for the reset stateMPS started to finish, then
// assigns d's USB address from its device-table slot (addr == index+1,
// never a separately allocated free-list value) and issues SetAddress,
// mirroring usbd_states.c's `pdev->addr = index + 1`.
func (s *Stack) stateAddress(d *Device) Status {
	if d.Addr == 0xFF {
		status, err := s.portResetStatus(d)
		if status == StatusXferWait {
			return status
		}
		if err != nil || (status != StatusOK && status != StatusXferDone) {
			return status
		}
		d.Addr = d.index + 1
	}
	status := s.ctrlRequest(d, setAddressRequest(uint16(d.Addr)), nil)
	if status == StatusXferWait {
		return status
	}
	if status != StatusXferDone {
		return status
	}
	s.delayTo(d, StateDevDesc, addressRecoveryMs)
	return StatusXferDone
}

// stateDevDesc fetches the full device descriptor.
func (s *Stack) stateDevDesc(d *Device) Status {
	req := getDescriptorRequest(DescriptorTypeDevice, 0, 0, DevDescSize)
	status := s.ctrlRequest(d, req, d.xferBuffer[:DevDescSize])
	if status == StatusXferWait {
		return status
	}
	if status != StatusXferDone {
		return status
	}
	b := d.xferBuffer[:DevDescSize]
	d.VendorID = DevDescGetIDVendor(b)
	d.ProductID = DevDescGetIDProduct(b)
	tmpl, ok := s.templates.lookup(d.VendorID, d.ProductID, 1)
	if ok {
		d.cfgTemplate = tmpl
	}
	s.setState(d, StateCfgDescLen9)
	return StatusXferDone
}

// stateCfgDescLen9 fetches just the 9-byte configuration descriptor
// header to learn wTotalLength before fetching the whole configuration,
// mirroring usb_device_parse_cfgdesc9.
func (s *Stack) stateCfgDescLen9(d *Device) Status {
	req := getDescriptorRequest(DescriptorTypeConfig, 0, 0, CfgDescSize)
	status := s.ctrlRequest(d, req, d.xferBuffer[:CfgDescSize])
	if status == StatusXferWait {
		return status
	}
	if status != StatusXferDone {
		return status
	}
	total := CfgDescGetWTotalLength(d.xferBuffer[:CfgDescSize])
	if int(total) > len(d.xferBuffer) {
		return StatusInvalidDescriptor
	}
	d.cfgBufLen = total
	s.setState(d, StateCfgDesc)
	return StatusXferDone
}

// stateCfgDesc fetches the whole configuration descriptor (header,
// interfaces, endpoints) in one transfer and parses it, probing/assigning
// a Driver for each interface as it goes, mirroring
// usb_device_parse_cfgdesc/usb_device_parse_ifacedesc/usb_device_parse_epdesc.
func (s *Stack) stateCfgDesc(d *Device) Status {
	req := getDescriptorRequest(DescriptorTypeConfig, 0, 0, d.cfgBufLen)
	status := s.ctrlRequest(d, req, d.xferBuffer[:d.cfgBufLen])
	if status == StatusXferWait {
		return status
	}
	if status != StatusXferDone {
		return status
	}
	if err := s.parseConfiguration(d); err != nil {
		return StatusInterfaceConfigFailed
	}
	s.setState(d, StateSetCfg)
	return StatusXferDone
}

func (s *Stack) stateSetCfg(d *Device) Status {
	status := s.ctrlRequest(d, setConfigurationRequest(uint16(d.CfgValue)), nil)
	if status == StatusXferWait {
		return status
	}
	if status != StatusXferDone {
		return status
	}
	s.setState(d, StateUnlock)
	return StatusXferDone
}

// stateUnlock is the single-tick handoff out of enumeration: it releases
// the stack-wide zero-address lock acquired back in statePowered, marks
// the device initialized (IRPs from class drivers are now accepted), and
// moves to Configured.
func (s *Stack) stateUnlock(d *Device) Status {
	if d.Status&DevStatusLockOnAddrZero != 0 {
		d.Status &^= DevStatusLockOnAddrZero
		s.addrZeroBusy = false
	}
	d.Status |= DevStatusInit | DevStatusActive
	s.setState(d, StateConfigured)
	return StatusXferDone
}

// stateConfigured is steady state: enumeration is done, the device's
// class driver(s) drive it via IRP from here on and the DSM has nothing
// further to do each tick.
func (s *Stack) stateConfigured(d *Device) Status {
	return StatusOK
}

// stateSuspended is a reserved no-op state: this implementation does not
// drive bus suspend/resume, matching the Non-goal that excludes deep
// power management. A device never transitions here on its own.
func (s *Stack) stateSuspended(d *Device) Status {
	return StatusOK
}

// ctrlRequest bridges a state function to the async IRP layer: the first
// call issues the control transfer and returns StatusXferWait, subsequent
// calls poll it, mirroring _ctrl_request's "issue then poll until done"
// pattern over usb_ctrlirp_bypass/usb_irp_status. When every message pipe
// is locked it returns StatusBusy without issuing anything, and the next
// call tries again.
func (s *Stack) ctrlRequest(d *Device, req StandardRequest, buf []byte) Status {
	if !d.pending {
		t, err := s.CtrlIRPBypass(d, req, buf)
		if err == ErrNoFreePipe {
			return StatusBusy
		}
		if err != nil {
			return StatusDriverFailed
		}
		d.ticket = t
		d.pending = true
		return StatusXferWait
	}
	status, _ := s.IRPStatus(d.ticket)
	if status == StatusXferWait {
		return status
	}
	d.pending = false
	return status
}

// portReset starts a bus reset for d: directly on the HCI for a
// root-port device, or routed through whichever Driver claimed the parent
// hub's interface for a device behind a hub. Mirrors _port_reset.
func (s *Stack) portReset(d *Device) {
	if d.ParentHub == ParentRoot {
		s.hci.ResetStart()
		return
	}
	hub := s.devices[d.ParentHub]
	if hub == nil || hub.Interfaces[0].DriverIdx == NoDriver {
		return
	}
	if drv, ok := s.registry.at(hub.Interfaces[0].DriverIdx).(PortResetter); ok {
		drv.PortReset(s, hub, d.ParentPort)
	}
}

// portResetStatus polls the reset started by portReset.
func (s *Stack) portResetStatus(d *Device) (Status, error) {
	if d.ParentHub == ParentRoot {
		return s.hci.ResetStop()
	}
	hub := s.devices[d.ParentHub]
	if hub == nil || hub.Interfaces[0].DriverIdx == NoDriver {
		return StatusDriverFailed, ErrNoDriver
	}
	if drv, ok := s.registry.at(hub.Interfaces[0].DriverIdx).(PortResetter); ok {
		return drv.PortResetStatus(s, hub, d.ParentPort)
	}
	return StatusDriverFailed, ErrNoDriver
}
