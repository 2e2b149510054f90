package usbhost

import "github.com/pkg/errors"

// HostState is the Host Orchestrator's top-level run state, mirroring
// usb_host_state_t.
type HostState uint8

const (
	HostIdle HostState = iota
	HostRunning
	HostSuspended
)

// Stack is the Host Orchestrator (HO): it owns the device table, the
// shared pipe pool, the driver registry, and the HCI collaborator, and
// drives every attached device's state machine forward one tick at a
// time. Nothing in Stack blocks; Run is meant to be called from a single
// goroutine's loop (a ticker, an event-loop tick, a test driving it by
// hand) exactly like usb_run was meant to be called from the firmware's
// main loop.
type Stack struct {
	hci       HCI
	pp        *PipePool
	registry  *DriverRegistry
	templates ConfigTemplates

	devices [MaxDevices]*Device

	// addrZeroBusy is the stack-wide zero-address lock: at most one device
	// may be in the address-0 part of enumeration at a time, mirroring the
	// original's single global reset/address-zero critical section.
	// Acquired in statePowered, held through addressing and the descriptor
	// reads, released in stateUnlock.
	addrZeroBusy bool

	hostState HostState
	ticks     uint16

	irps map[Ticket]*irpState
}

func NewStack(hci HCI, registry *DriverRegistry, templates ConfigTemplates) *Stack {
	if templates == nil {
		templates = DefaultConfigTemplates()
	}
	return &Stack{
		hci:       hci,
		pp:        NewPipePool(hci),
		registry:  registry,
		templates: templates,
		irps:      make(map[Ticket]*irpState),
	}
}

// Init brings up the HCI and the shared message pipe pool, mirroring
// usb_init.
func (s *Stack) Init() error {
	if err := s.hci.Init(); err != nil {
		return errors.Wrap(err, "hci init")
	}
	if err := s.pp.Allocate(); err != nil {
		return errors.Wrap(err, "pipe pool init")
	}
	s.hostState = HostIdle
	return nil
}

// Deinit tears every attached device down and releases the HCI, mirroring
// usb_deinit.
func (s *Stack) Deinit() error {
	for i := range s.devices {
		if s.devices[i] != nil {
			s.release(s.devices[i])
		}
	}
	return s.hci.Deinit()
}

// Tick advances the stack's millisecond counter, mirroring
// usb_systick_inc; State functions compare against it (via Device.TicksDelay)
// using wraparound-safe signed subtraction, matching _state_wait_delay.
func (s *Stack) Tick() {
	s.ticks++
}

func (s *Stack) now() uint16 { return s.ticks }

// RootDevice returns whatever currently occupies the root port's device
// slot, or nil if nothing is attached there.
func (s *Stack) RootDevice() *Device { return s.devices[0] }

// DeviceAt returns whatever currently occupies device-table slot idx, or
// nil if that slot is empty or out of range. Lets a caller (a CLI
// diagnostic, a test) walk the device table beyond the root slot, e.g. to
// reach a device enumerated behind a hub's port.
func (s *Stack) DeviceAt(idx uint8) *Device {
	if int(idx) >= len(s.devices) {
		return nil
	}
	return s.devices[idx]
}

// Run is the host orchestrator's per-iteration entry point: it tracks the
// root port's connect/disconnect transitions and advances every attached
// device's state machine by one step, mirroring usb_run.
func (s *Stack) Run() {
	connected := s.hci.IsConnected()

	switch s.hostState {
	case HostIdle:
		if connected {
			if _, err := s.attach(ParentRoot, 0); err == nil {
				s.hostState = HostRunning
			}
		}
	case HostRunning:
		if !connected {
			if root := s.devices[0]; root != nil {
				s.release(root)
			}
			s.hostState = HostIdle
		}
	case HostSuspended:
		// Suspended is a reserved no-op state in this implementation; no
		// transitions originate from it.
	}

	for i := range s.devices {
		d := s.devices[i]
		if d == nil {
			continue
		}
		status := s.updateDevice(d)
		if isFatalDSMStatus(status) {
			s.release(d)
			continue
		}
		if d.State == StateConfigured {
			s.updateHubTopology(d)
		}
	}
}

// isFatalDSMStatus reports whether status is one of the enumeration
// failures the DSM cannot recover from on its own: a descriptor that
// disagrees with the fixed-capacity tables or the device's configuration
// template, a class driver's Assign failing, the device vanishing from the
// bus mid-transfer, or a transfer-layer error. Run releases the device for
// any of these instead of leaving it parked re-issuing the same failed
// request forever.
func isFatalDSMStatus(status Status) bool {
	switch status {
	case StatusInvalidDescriptor, StatusInterfaceConfigFailed, StatusEndpointUnavailable,
		StatusDeviceNotFound, StatusDeviceUnreachable, StatusXferError, StatusDriverFailed:
		return true
	default:
		return false
	}
}

// updateHubTopology asks d's HUB driver (if any of its interfaces has one
// bound) to poll its downstream ports for connect/disconnect changes,
// mirroring usb_hub_update being driven from the HO's main loop once per
// configured hub per tick.
func (s *Stack) updateHubTopology(d *Device) {
	for i := range d.Interfaces {
		iface := &d.Interfaces[i]
		if iface.DriverIdx == NoDriver {
			continue
		}
		if drv, ok := s.registry.at(iface.DriverIdx).(HubDriver); ok {
			drv.Update(s, d)
		}
	}
}

// attach reserves a device slot for a newly discovered device hanging off
// parentHub/parentPort (ParentRoot/0 for the device on the root port
// itself) and puts it in StateWaitDelay, mirroring usb_device_attach.
func (s *Stack) attach(parentHub uint8, parentPort uint8) (*Device, error) {
	if parentHub != ParentRoot {
		if _, ok := s.deviceIndexFromHubPort(parentHub, parentPort); ok {
			return nil, errors.New("usbhost: port already occupied")
		}
	}

	idx := -1
	for i := range s.devices {
		if s.devices[i] == nil {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errors.New("usbhost: device table full")
	}

	d := &Device{}
	d.init()
	d.stack = s
	d.index = uint8(idx)
	d.ParentHub = parentHub
	d.ParentPort = parentPort
	d.Status |= DevStatusConnected
	d.State = StateWaitDelay
	d.NextState = StateAttached
	s.setDelay(d, attachDebounceMs)

	s.devices[idx] = d
	return d, nil
}

// release tears a device down: it first recurses over any device whose
// ParentHub points at this slot (a hub's downstream devices must go
// before the hub itself), then releases every interface's endpoints, frees
// the device's address, and frees the slot. Mirrors usb_device_release's
// recursive-over-children behavior, resolved here by storing the parent's
// device index directly (see ParentHub) instead of re-deriving it from a
// hub address lookup.
func (s *Stack) release(d *Device) {
	for i := range s.devices {
		child := s.devices[i]
		if child != nil && child.ParentHub == d.index {
			s.release(child)
		}
	}

	for i := range d.Interfaces {
		iface := &d.Interfaces[i]
		if iface.DriverIdx != NoDriver {
			if drv := s.registry.at(iface.DriverIdx); drv != nil {
				drv.Remove(s, d, uint8(i))
			}
		}
		iface.releaseEndpoints(s.pp)
		iface.reset()
	}

	if d.Status&DevStatusLockOnAddrZero != 0 {
		s.addrZeroBusy = false
	}

	s.devices[d.index] = nil
}

// releaseFromPort releases whichever device (if any) occupies parentPort
// of the hub at parentHub, mirroring usb_release_from_port; used by a HUB
// driver reacting to a port-disconnect notification.
func (s *Stack) releaseFromPort(parentHub, parentPort uint8) {
	for i := range s.devices {
		d := s.devices[i]
		if d != nil && d.ParentHub == parentHub && d.ParentPort == parentPort {
			s.release(d)
			return
		}
	}
}

// AttachDownstream attaches a newly discovered device behind parentPort of
// the hub occupying device slot parentHub. Exported so a HubDriver
// implementation in another package (drivers.Hub) can drive topology
// discovery without reaching into Stack's unexported state.
func (s *Stack) AttachDownstream(parentHub, parentPort uint8) (*Device, error) {
	return s.attach(parentHub, parentPort)
}

// ReleaseFromPort is the exported form of releaseFromPort, called by a
// HubDriver implementation reacting to a downstream port disconnect.
func (s *Stack) ReleaseFromPort(parentHub, parentPort uint8) {
	s.releaseFromPort(parentHub, parentPort)
}

// deviceIndexFromHubPort resolves which device slot (if any) is the
// hub/port pair's current occupant, mirroring _devidx_from_hub_port.
func (s *Stack) deviceIndexFromHubPort(parentHub, parentPort uint8) (uint8, bool) {
	for i := range s.devices {
		d := s.devices[i]
		if d != nil && d.ParentHub == parentHub && d.ParentPort == parentPort {
			return uint8(i), true
		}
	}
	return 0, false
}

func (s *Stack) setDelay(d *Device, delayMs uint16) {
	d.TicksDelay = s.ticks + delayMs
}

// delayElapsed compares d.TicksDelay against the current tick using
// wraparound-safe signed subtraction, mirroring _state_wait_delay's
// ((int16_t)(usb_systick() - pdev->ticks_delay)) >= 0 check.
func (s *Stack) delayElapsed(d *Device) bool {
	return int16(s.ticks-d.TicksDelay) >= 0
}
