package usbhost

// PipeLockFree marks a message pipe as not currently owned by any device.
const PipeLockFree = 0xFF

type (
	// Pipe is a streaming endpoint's local handle: one per non-zero
	// endpoint of a configured interface. Number holds the endpoint number
	// only; the direction is kept separately in Dir. Buffer/Actual are
	// exported so an HCI implementation living in its own package (a
	// fake, a real usbfs backend) can fill in a caller's request without
	// reaching into unexported state.
	Pipe struct {
		Handle   uint8 // HCI-assigned hardware pipe handle
		Number   uint8 // endpoint number (0-15)
		Type     TransferType
		Dir      Dir
		MPS      uint16
		Interval uint8

		Buffer []byte // caller's transfer buffer, written in place by the HCI
		Actual uint32 // bytes actually transferred, set by the HCI on completion

		retries uint8
	}

	// MessagePipe is a control pipe from the shared pool (PP). Unlike a
	// streaming Pipe it isn't owned by one device for its whole lifetime:
	// AcquireMessagePipe/ReleaseMessagePipe bracket every control
	// transaction.
	MessagePipe struct {
		Handle uint8
		MPS    uint8
		owner  uint8 // device index, or PipeLockFree

		Request StandardRequest
		Buffer  []byte
		Actual  int

		retries uint8
	}
)

// PipePool owns the fixed-size array of message pipes shared by every
// device's control transactions, plus per-device streaming pipe
// allocation through the HCI.
type PipePool struct {
	hci   HCI
	msgs  [NCtrlEndpoints]MessagePipe
}

func NewPipePool(hci HCI) *PipePool {
	pp := &PipePool{hci: hci}
	for i := range pp.msgs {
		pp.msgs[i].owner = PipeLockFree
	}
	return pp
}

// Allocate asks the HCI for a hardware pipe handle for a new message pipe
// and initializes the pool; mirrors usb_init's loop over USB_N_CTRL_ENDPOINTS.
func (pp *PipePool) Allocate() error {
	for i := range pp.msgs {
		handle, err := pp.hci.PipeAlloc(TransferTypeControl)
		if err != nil {
			return err
		}
		pp.msgs[i].Handle = handle
		pp.msgs[i].owner = PipeLockFree
	}
	return nil
}

// AcquireMessagePipe locks the first free control pipe for devIdx's use,
// grounded on usb_get_ctrl_pipe's linear scan-and-lock.
func (pp *PipePool) AcquireMessagePipe(devIdx uint8) (uint8, error) {
	for i := range pp.msgs {
		if pp.msgs[i].owner == PipeLockFree {
			pp.msgs[i].owner = devIdx
			return uint8(i), nil
		}
	}
	return 0, ErrNoFreePipe
}

// ReleaseMessagePipe unconditionally frees pipe index idx, mirroring
// usb_unlock_pipe (it never fails: unlocking an already-free pipe is a
// no-op, not an error, since release paths call it defensively).
func (pp *PipePool) ReleaseMessagePipe(idx uint8) {
	pp.msgs[idx].owner = PipeLockFree
}

// OwnerOf reports which device currently holds message pipe idx, or
// PipeLockFree.
func (pp *PipePool) OwnerOf(idx uint8) uint8 {
	return pp.msgs[idx].owner
}

func (pp *PipePool) MessagePipe(idx uint8) *MessagePipe {
	return &pp.msgs[idx]
}

// Configure allocates and configures a streaming pipe for one endpoint
// descriptor, mirroring usb_device_parse_epdesc's pipe_alloc+configure
// pair; on configuration failure the caller is responsible for releasing
// any pipes already bound to the same interface (see Interface.releaseEndpoints).
func (pp *PipePool) Configure(dev *Device, p *Pipe) error {
	handle, err := pp.hci.PipeAlloc(p.Type)
	if err != nil {
		return ErrPipeNotOwned
	}
	p.Handle = handle
	if err := pp.hci.PipeConfigure(dev, p); err != nil {
		pp.hci.PipeDealloc(handle)
		return err
	}
	return nil
}

// Deallocate releases a streaming pipe's hardware resources and resets it
// to an invalid/unused state, mirroring usb_pipe_remove.
func (pp *PipePool) Deallocate(p *Pipe) error {
	if err := pp.hci.PipeDealloc(p.Handle); err != nil {
		return err
	}
	*p = Pipe{Handle: 0xFF, Dir: Dir(0xFF), Interval: 0xFF}
	return nil
}
