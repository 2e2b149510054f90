package usbhost

// Device status bits, tracked in Device.Status.
const (
	DevStatusConnected = 1 << iota
	DevStatusActive
	DevStatusLocked
	DevStatusInit // enumeration finished, IRPs accepted
	DevStatusLockOnAddrZero
)

// ParentRoot marks a device with no parent hub (the root device, or any
// device whose hub link has not been set).
const ParentRoot = 0xFF

// State is the device's position in the enumeration/runtime state
// machine. Values follow the USB_DEV_STATE_* order from the original so
// the state function table in dsm.go can be indexed by State directly.
type State uint8

const (
	StateWaitDelay State = iota
	StateDisconnected
	StateAttached
	StatePowered
	StateReset
	StateDefault
	StateMPS
	StateAddress
	StateDevDesc
	StateCfgDescLen9
	StateCfgDesc
	StateSetCfg
	StateUnlock
	StateConfigured
	StateSuspended
	stateCount
)

func (s State) String() string {
	names := [...]string{
		"wait-delay", "disconnected", "attached", "powered", "reset",
		"default", "mps", "address", "dev-desc", "cfg-desc-len9",
		"cfg-desc", "set-cfg", "unlock", "configured", "suspended",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "invalid"
}

// Device is one tracked USB device slot: the root device occupies index 0,
// every other index is handed out by Stack.attach as devices are
// discovered (directly, or via a hub port).
type Device struct {
	Status     uint32
	State      State
	NextState  State
	Speed      Speed
	Addr       uint8
	MPS        uint8
	VendorID   uint16
	ProductID  uint16
	TicksDelay uint16

	ParentHub  uint8 // device index of the upstream hub, or ParentRoot
	ParentPort uint8

	CfgValue  uint8
	MaxPower  uint8
	SelfPwrd  bool
	RemoteWkp bool

	Interfaces   [MaxInterfacesPerDevice]Interface
	NumIfaces    uint8
	cfgTemplate  *ConfigTemplate
	xferBuffer   [XferBufferLen]byte
	xferLength   uint16
	cfgBufLen    uint16

	ticket  Ticket
	pending bool // a ctrlRequest issued by the DSM is in flight

	stack *Stack // owning Stack, set by Stack.attach
	index uint8  // this device's slot index within stack.devices
}

func (d *Device) init() {
	*d = Device{
		State:      StateDisconnected,
		NextState:  StateDisconnected,
		Addr:       0xFF,
		ParentHub:  ParentRoot,
		ParentPort: 0,
	}
	for i := range d.Interfaces {
		d.Interfaces[i].reset()
	}
}

func (d *Device) isActive() bool {
	return d.Status&DevStatusActive != 0
}

func (d *Device) isInitialized() bool {
	return d.Status&DevStatusInit != 0
}

// Index returns this device's slot index within its owning Stack, stable
// for the device's lifetime and usable as a map key by out-of-package
// Drivers that need to keep per-device state (the HUB driver's per-hub
// port table, for instance).
func (d *Device) Index() uint8 { return d.index }

// Ctrl/Bulk live in convenience.go — the blocking, context-cancellable
// wrappers over the non-blocking IRP entry points that let class drivers
// and user code call this type the same way the teacher's ioctl-backed
// Device.Ctrl/Device.Bulk did.
