package usbhost

// HCI is the Host Controller Interface collaborator: everything the core
// needs from the actual silicon (or a fake standing in for it during
// tests). Every method here must either return immediately or be
// expressible as start/poll/cancel so the DSM/PP/HO never block — any
// blocking the real hardware requires (an ioctl, a DMA wait) happens
// inside the HCI implementation's own goroutines, never on the caller's.
type HCI interface {
	Init() error
	Deinit() error

	// IsConnected reports whether anything is attached to the root port.
	IsConnected() bool
	// Speed returns the negotiated speed of the device currently occupying
	// address 0 (valid only mid-reset/mid-enumeration).
	Speed() Speed

	// ResetStart begins driving bus reset on the root port (or, for
	// devices behind a hub, is routed through the hub driver instead -
	// see Driver/HubDriver in registry.go).
	ResetStart()
	// ResetStop polls for reset completion; returns StatusXferWait while
	// still resetting.
	ResetStop() (Status, error)

	// PipeAlloc reserves a hardware pipe/channel for a transfer type and
	// returns its handle.
	PipeAlloc(t TransferType) (uint8, error)
	// PipeDealloc releases a previously allocated pipe handle.
	PipeDealloc(handle uint8) error
	// PipeConfigure (re)configures a streaming pipe for dev.
	PipeConfigure(dev *Device, p *Pipe) error
	// MsgPipeConfigure (re)configures a message pipe for dev's current
	// address and dev's default endpoint MPS.
	MsgPipeConfigure(dev *Device, p *MessagePipe) error

	// CtrlXferStart begins the SETUP+DATA+STATUS bracket already loaded
	// into p (request fields and buffer are set by the caller first).
	CtrlXferStart(dev *Device, p *MessagePipe) error
	// CtrlXferCancel aborts an in-flight control transfer.
	CtrlXferCancel(dev *Device, p *MessagePipe)
	// CtrlXferStatus polls for completion; returns StatusXferWait while
	// still in flight, StatusEndpointStalled on a stalled endpoint.
	CtrlXferStatus(dev *Device, p *MessagePipe) (Status, error)

	// XferStart begins a streaming transfer already loaded into p.
	XferStart(dev *Device, p *Pipe) error
	// XferCancel aborts an in-flight streaming transfer.
	XferCancel(dev *Device, p *Pipe)
	// XferStatus polls for completion.
	XferStatus(dev *Device, p *Pipe) (Status, error)
}
