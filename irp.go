package usbhost

// MaxRetries bounds how many times a stalled transfer is silently retried
// before the IRP layer surfaces the stall to the caller, mirroring
// MAX_RETRIES in usbd.c's _irp_status.
const MaxRetries = MaxXferRetries

// irpState tracks one in-flight request keyed by its Ticket so IRPStatus
// can be polled repeatedly without the caller threading any state through
// itself.
type irpState struct {
	dev    *Device
	ticket Ticket
	iface  uint8 // interface owning the endpoint, for streaming tickets
}

// CtrlIRP issues a standard control transfer against dev: it acquires a
// message pipe from the pool, loads req and buf into it, and starts the
// SETUP+DATA(+STATUS) bracket on the HCI. The returned Ticket is handed to
// IRPStatus to poll for completion and IRPCancel to abort.
//
// CtrlIRP refuses devices that have not finished enumerating
// (DevStatusInit unset); enumeration itself goes through CtrlIRPBypass,
// which the DSM uses directly on address 0.
func (s *Stack) CtrlIRP(dev *Device, req StandardRequest, buf []byte) (Ticket, error) {
	if !dev.isInitialized() {
		return Ticket{}, ErrDeviceNotInit
	}
	return s.ctrlIRP(dev, req, buf)
}

// CtrlIRPBypass is CtrlIRP without the DevStatusInit check, grounded on
// usb_ctrlirp_bypass: the DSM's own enumeration states (GetDescriptor,
// SetAddress, SetConfiguration...) run before the device is marked
// initialized and must still be able to issue control transfers.
func (s *Stack) CtrlIRPBypass(dev *Device, req StandardRequest, buf []byte) (Ticket, error) {
	return s.ctrlIRP(dev, req, buf)
}

func (s *Stack) ctrlIRP(dev *Device, req StandardRequest, buf []byte) (Ticket, error) {
	pipeIdx, err := s.pp.AcquireMessagePipe(dev.index)
	if err != nil {
		return Ticket{}, err
	}
	mp := s.pp.MessagePipe(pipeIdx)
	mp.Request = req
	mp.Buffer = buf
	mp.Actual = 0
	mp.retries = 0

	if err := s.hci.MsgPipeConfigure(dev, mp); err != nil {
		s.pp.ReleaseMessagePipe(pipeIdx)
		return Ticket{}, err
	}
	if err := s.hci.CtrlXferStart(dev, mp); err != nil {
		s.pp.ReleaseMessagePipe(pipeIdx)
		return Ticket{}, err
	}

	t := MessageTicket(pipeIdx)
	s.irps[t] = &irpState{dev: dev, ticket: t}
	return t, nil
}

// IRP issues a streaming transfer on one of dev's already-configured
// endpoint pipes, grounded on usb_irp.
func (s *Stack) IRP(dev *Device, ifaceIdx, epIdx uint8, buf []byte) (Ticket, error) {
	if !dev.isInitialized() {
		return Ticket{}, ErrDeviceNotInit
	}
	if int(ifaceIdx) >= len(dev.Interfaces) || epIdx >= dev.Interfaces[ifaceIdx].NumEps {
		return Ticket{}, ErrInvalidParam
	}
	p := &dev.Interfaces[ifaceIdx].Endpoints[epIdx]
	p.Buffer = buf
	p.Actual = 0
	p.retries = 0
	if err := s.hci.XferStart(dev, p); err != nil {
		return Ticket{}, err
	}
	t := StreamTicket(epIdx)
	s.irps[t] = &irpState{dev: dev, ticket: t, iface: ifaceIdx}
	return t, nil
}

// IRPStatus polls an in-flight request. It returns StatusXferWait while
// the transfer is still running. On a stall it retries silently up to
// MaxRetries times (mirroring _irp_status's "reset retry count on success,
// bail after MAX_RETRIES" rule) before surfacing StatusEndpointStalled;
// any other terminal status releases the message pipe (streaming pipes
// stay owned by their interface until release) and forgets the Ticket.
func (s *Stack) IRPStatus(t Ticket) (Status, error) {
	st, ok := s.irps[t]
	if !ok {
		return StatusInvalidParam, ErrUnknownTicket
	}

	if t.IsMessagePipe() {
		mp := s.pp.MessagePipe(t.Index)
		status, err := s.hci.CtrlXferStatus(st.dev, mp)
		if status == StatusEndpointStalled && mp.retries < MaxRetries {
			mp.retries++
			s.hci.CtrlXferCancel(st.dev, mp)
			if rerr := s.hci.CtrlXferStart(st.dev, mp); rerr != nil {
				delete(s.irps, t)
				s.pp.ReleaseMessagePipe(t.Index)
				return StatusXferError, rerr
			}
			return StatusXferWait, nil
		}
		if status == StatusXferWait {
			return status, err
		}
		mp.retries = 0
		delete(s.irps, t)
		s.pp.ReleaseMessagePipe(t.Index)
		return status, err
	}

	p := &st.dev.Interfaces[st.iface].Endpoints[t.Index]
	status, err := s.hci.XferStatus(st.dev, p)
	if status == StatusEndpointStalled && p.retries < MaxRetries {
		p.retries++
		s.hci.XferCancel(st.dev, p)
		if rerr := s.hci.XferStart(st.dev, p); rerr != nil {
			delete(s.irps, t)
			return StatusXferError, rerr
		}
		return StatusXferWait, nil
	}
	if status != StatusXferWait {
		p.retries = 0
		delete(s.irps, t)
	}
	return status, err
}

// IRPCancel aborts an in-flight request and releases any pipe it held,
// mirroring usb_irp_cancel.
func (s *Stack) IRPCancel(t Ticket) {
	st, ok := s.irps[t]
	if !ok {
		return
	}
	if t.IsMessagePipe() {
		mp := s.pp.MessagePipe(t.Index)
		s.hci.CtrlXferCancel(st.dev, mp)
		s.pp.ReleaseMessagePipe(t.Index)
	} else {
		s.hci.XferCancel(st.dev, &st.dev.Interfaces[st.iface].Endpoints[t.Index])
	}
	delete(s.irps, t)
}
