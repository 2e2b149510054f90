// Package drivers holds the class drivers wired into the host stack's
// Driver registry: HUB (topology) and HID (human interface devices).
package drivers

import (
	"encoding/binary"

	"github.com/112358fn/usbhost"
)

// Hub class request codes and port feature selectors (USB 2.0 table
// 11-17), grounded on usb_hub.h's begin_reset/end_reset/poweron sketch.
const (
	portFeatureConnection  = 0
	portFeatureEnable      = 1
	portFeatureReset       = 4
	portFeaturePower       = 8
	portFeatureCConnection = 16
	portFeatureCReset      = 20
)

// Bit positions within GetPortStatus's wPortStatus/wPortChange words (USB
// 2.0 table 11-15/11-16). Distinct from the feature selector numbers above:
// ClearFeature/SetFeature take a selector value, GetPortStatus's two words
// are read as plain bitfields.
const (
	portStatusConnection = 1 << 0
	portStatusLowSpeed    = 1 << 9
	portStatusHighSpeed   = 1 << 10

	portChangeConnection = 1 << 0
)

// hubState is one attached hub's port table, keyed by the hub Device's
// stable Index().
type hubState struct {
	numPorts uint8
	scanPort uint8

	resets [usbhost.MaxHubPorts]struct {
		pending bool
		ticket  usbhost.Ticket
	}

	ports [usbhost.MaxHubPorts]portState
}

// portState tracks one downstream port's last known connection state and
// whichever request Update currently has in flight on it: a GetPortStatus
// poll, then (if it reported a connection change) the ClearFeature ack
// that must complete before Update acts on the change, so every
// CtrlIRPBypass ticket Update opens is always polled to completion and its
// message pipe freed.
type portState struct {
	connected bool
	speed     usbhost.Speed

	pending bool
	ticket  usbhost.Ticket
	buf     [4]byte

	acking bool // the in-flight ticket is the ClearFeature ack, not GetPortStatus
}

func (s *hubState) resetTicket(port uint8, t usbhost.Ticket) {
	s.resets[port].pending = true
	s.resets[port].ticket = t
}

func (s *hubState) pendingReset(port uint8) (usbhost.Ticket, bool) {
	if !s.resets[port].pending {
		return usbhost.Ticket{}, false
	}
	return s.resets[port].ticket, true
}

func (s *hubState) clearReset(port uint8) {
	s.resets[port].pending = false
}

// Hub is the HUB class driver (DR priority: register ahead of Hid so a
// composite device's hub interface is never mistakenly left to a generic
// class driver). It implements usbhost.HubDriver so the DSM can route a
// downstream device's bus reset and speed query through its parent hub
// instead of the root HCI, and so the Host Orchestrator can ask it to poll
// its own downstream ports for connect/disconnect changes.
type Hub struct {
	hubs map[uint8]*hubState
}

func NewHub() *Hub {
	return &Hub{hubs: make(map[uint8]*hubState)}
}

func (h *Hub) VendorID() uint16  { return usbhost.ForceProbingID }
func (h *Hub) ProductID() uint16 { return usbhost.ForceProbingID }

// Probe recognizes any interface advertising the hub class with exactly
// one (status change) endpoint, mirroring hub_probe's interface-descriptor
// check.
func (h *Hub) Probe(dev *usbhost.Device, buffer []byte) bool {
	if len(buffer) < usbhost.IfaceDescSize {
		return false
	}
	if usbhost.IfaceDescGetBInterfaceClass(buffer) != usbhost.ClassCodeDeviceHub {
		return false
	}
	return usbhost.IfaceDescGetBNumEndpoints(buffer) == 1
}

// Assign records a new hub instance. The real hub descriptor (number of
// downstream ports, power switching mode) would normally be fetched with
// a class-specific GetDescriptor(HUB) request; since Assign runs
// synchronously inside the enumeration tick and must not block, we seed
// the conservative upper bound (MaxHubPorts) instead of round-tripping a
// control transfer here. The port count is never refined afterwards:
// Update polls, and PortReset/PortResetStatus address, every port index
// below MaxHubPorts, including ports the hub does not really have; only a
// port index of MaxHubPorts or more is refused (StatusDeviceNotFound).
func (h *Hub) Assign(stack *usbhost.Stack, dev *usbhost.Device, ifaceIdx uint8, buffer []byte) error {
	h.hubs[dev.Index()] = &hubState{numPorts: usbhost.MaxHubPorts}
	return nil
}

func (h *Hub) Remove(stack *usbhost.Stack, dev *usbhost.Device, ifaceIdx uint8) error {
	delete(h.hubs, dev.Index())
	return nil
}

func (h *Hub) portRequest(bRequest uint8, value uint16, port uint8) usbhost.StandardRequest {
	dir := usbhost.RequestDirectionOut
	var length uint16
	if bRequest == usbhost.ReqGetStatus {
		dir = usbhost.RequestDirectionIn
		length = 4
	}
	return usbhost.StandardRequest{
		BmRequestType: dir | usbhost.RequestTypeClass | usbhost.RequestRecipientOther,
		BRequest:      bRequest,
		WValue:        value,
		WIndex:        uint16(port) + 1, // hub ports are 1-based on the wire
		WLength:       length,
	}
}

// PortReset starts a reset pulse on hubDev's port, mirroring
// usb_hub_begin_reset. It fires a SetPortFeature(PORT_RESET) class
// request through CtrlIRPBypass and leaves polling it to PortResetStatus;
// errors starting the request are swallowed here (there is nowhere to
// report them from this signature) and simply surface as
// StatusDeviceNotFound on the first PortResetStatus poll.
func (h *Hub) PortReset(stack *usbhost.Stack, hubDev *usbhost.Device, port uint8) {
	inst, ok := h.hubs[hubDev.Index()]
	if !ok || port >= inst.numPorts {
		return
	}
	req := h.portRequest(usbhost.ReqSetFeature, portFeatureReset, port)
	t, err := stack.CtrlIRPBypass(hubDev, req, nil)
	if err != nil {
		return
	}
	inst.resetTicket(port, t)
}

// PortResetStatus polls the SetPortFeature(PORT_RESET) request started by
// PortReset, mirroring usb_hub_end_reset's completion half.
func (h *Hub) PortResetStatus(stack *usbhost.Stack, hubDev *usbhost.Device, port uint8) (usbhost.Status, error) {
	inst, ok := h.hubs[hubDev.Index()]
	if !ok || port >= inst.numPorts {
		return usbhost.StatusDeviceNotFound, usbhost.ErrDeviceNotActive
	}
	t, ok := inst.pendingReset(port)
	if !ok {
		return usbhost.StatusDeviceNotFound, usbhost.ErrDeviceNotActive
	}
	status, err := stack.IRPStatus(t)
	if status == usbhost.StatusXferWait {
		return status, nil
	}
	inst.clearReset(port)
	return status, err
}

// GetSpeed reports the negotiated speed of whatever last answered
// GetPortStatus on hubDev's port, populated by Update's periodic poll,
// mirroring usb_hub_get_speed.
func (h *Hub) GetSpeed(stack *usbhost.Stack, hubDev *usbhost.Device, port uint8) (usbhost.Speed, error) {
	inst, ok := h.hubs[hubDev.Index()]
	if !ok || port >= inst.numPorts {
		return usbhost.SpeedInvalid, usbhost.ErrDeviceNotActive
	}
	return inst.ports[port].speed, nil
}

// GetAddress returns hubDev's own bus address, mirroring the original's
// hub_get_address(hub_idx) used to identify the hub device itself rather
// than one of its downstream ports.
func (h *Hub) GetAddress(stack *usbhost.Stack, hubDev *usbhost.Device) uint8 {
	return hubDev.Addr
}

// Update polls one downstream port per call (round-robin across the hub's
// ports, one port's worth of work per Run so a single hub's topology scan
// never blocks the rest of the device table), mirroring usb_hub_update. A
// completed GetPortStatus reporting a connection change is first
// acknowledged with ClearFeature(C_PORT_CONNECTION); only once that ack
// itself completes does Update attach or release the device on the port,
// so every ticket Update opens is always polled to completion and its
// message pipe freed.
func (h *Hub) Update(stack *usbhost.Stack, hubDev *usbhost.Device) {
	inst, ok := h.hubs[hubDev.Index()]
	if !ok || inst.numPorts == 0 {
		return
	}
	port := inst.scanPort
	ps := &inst.ports[port]

	if ps.pending {
		status, err := stack.IRPStatus(ps.ticket)
		if status == usbhost.StatusXferWait {
			return
		}
		ps.pending = false
		if ps.acking {
			ps.acking = false
			inst.scanPort = (port + 1) % inst.numPorts
			if err == nil && status == usbhost.StatusXferDone {
				h.applyPortChange(stack, hubDev, port, ps)
			}
			return
		}
		if err == nil && status == usbhost.StatusXferDone {
			if h.ackPortChange(stack, hubDev, port, ps) {
				return
			}
		}
		inst.scanPort = (port + 1) % inst.numPorts
		return
	}

	req := h.portRequest(usbhost.ReqGetStatus, 0, port)
	t, err := stack.CtrlIRPBypass(hubDev, req, ps.buf[:])
	if err != nil {
		inst.scanPort = (port + 1) % inst.numPorts
		return
	}
	ps.pending = true
	ps.ticket = t
}

// ackPortChange interprets a completed GetPortStatus reply, caching the
// port's speed bits for GetSpeed. If it reports a connection-state change,
// it starts the ClearFeature(C_PORT_CONNECTION) ack and returns true so
// Update parks on this port until the ack completes; otherwise it returns
// false so Update advances to the next port immediately.
func (h *Hub) ackPortChange(stack *usbhost.Stack, hubDev *usbhost.Device, port uint8, ps *portState) bool {
	status := binary.LittleEndian.Uint16(ps.buf[0:2])
	change := binary.LittleEndian.Uint16(ps.buf[2:4])

	switch {
	case status&portStatusHighSpeed != 0:
		ps.speed = usbhost.SpeedHigh
	case status&portStatusLowSpeed != 0:
		ps.speed = usbhost.SpeedLow
	default:
		ps.speed = usbhost.SpeedFull
	}

	if change&portChangeConnection == 0 {
		return false
	}

	ack := h.portRequest(usbhost.ReqClearFeature, portFeatureCConnection, port)
	t, err := stack.CtrlIRPBypass(hubDev, ack, nil)
	if err != nil {
		return false
	}
	ps.pending = true
	ps.ticket = t
	ps.acking = true
	ps.connected = status&portStatusConnection != 0
	return true
}

// applyPortChange attaches a newly-connected device or releases one that
// disappeared, mirroring usb_hub_is_connected feeding
// _devidx_from_hub_port release, once the ClearFeature ack this change
// triggered has completed.
func (h *Hub) applyPortChange(stack *usbhost.Stack, hubDev *usbhost.Device, port uint8, ps *portState) {
	if ps.connected {
		stack.AttachDownstream(hubDev.Index(), port)
		return
	}
	stack.ReleaseFromPort(hubDev.Index(), port)
}
