// Package fakehci is a deterministic, in-memory usbhost.HCI used to drive
// the device state machine and pipe pool in tests without real hardware
// or a kernel usbfs backend. Every transfer and every bus reset reports
// done on the first poll after HCI.TransferTicks polls that report it still
// in progress; that one setting applies to all request kinds.
package fakehci

import (
	"encoding/binary"

	"github.com/112358fn/usbhost"
)

// Port status/change bits fakehci fabricates for a hub device's
// GetPortStatus class request (USB 2.0 table 11-15/11-16).
const (
	portStatusConnection = 1 << 0
	portStatusLowSpeed    = 1 << 9
	portStatusHighSpeed   = 1 << 10
	portChangeConnection  = 1 << 0
)

// ScriptedDevice is what a test wants fakehci to pretend is attached: the
// descriptor bytes it will hand back for GetDescriptor requests, its speed,
// and whether its first control transfer stalls. How many polls a transfer
// takes to settle is set on HCI (TransferTicks), not here.
type ScriptedDevice struct {
	Speed            usbhost.Speed
	DeviceDescriptor []byte
	ConfigDescriptor []byte
	// StallOnce, if set, makes the very first control transfer stall
	// once before succeeding, to exercise the IRP layer's retry path.
	StallOnce bool

	primed  bool // StallOnce has already fired once, never again
	stalled bool // the in-flight transfer is the one that will stall
}

// HubPort scripts one downstream port's connection state for a hub
// device's GetPortStatus polling, analogous to ScriptedDevice but for the
// topology a HUB driver's Update discovers instead of the device that sits
// directly on the root port.
type HubPort struct {
	Connected bool
	Speed     usbhost.Speed

	acked bool // last Connected value the host has cleared C_PORT_CONNECTION for
}

// HCI is the fake itself. Connected/Device can be changed between Stack.Run
// calls to script attach/detach sequences.
type HCI struct {
	Connected bool
	Device    *ScriptedDevice

	// DeviceByIndex overrides Device for a specific device-table slot, so a
	// test can script a different descriptor set for a device sitting
	// behind a hub than for the hub itself.
	DeviceByIndex map[uint8]*ScriptedDevice

	// Hubs scripts downstream port tables keyed by hub device index, for
	// CtrlXferStart to answer that hub's GetPortStatus/ClearFeature class
	// requests.
	Hubs map[uint8]map[uint8]*HubPort

	// TransferTicks is how many Status polls a transfer takes to settle
	// before reporting done; 0 means "done on the first poll".
	TransferTicks int

	pipes       []usbhost.TransferType
	resetTicks  int
	resetWait   int
	xferWait    map[uint8]int
	ctrlXferBuf map[uint8][]byte
}

func New() *HCI {
	return &HCI{
		xferWait:    make(map[uint8]int),
		ctrlXferBuf: make(map[uint8][]byte),
	}
}

func (h *HCI) deviceFor(dev *usbhost.Device) *ScriptedDevice {
	if sd, ok := h.DeviceByIndex[dev.Index()]; ok {
		return sd
	}
	return h.Device
}

func (h *HCI) Init() error   { return nil }
func (h *HCI) Deinit() error { return nil }

func (h *HCI) IsConnected() bool { return h.Connected }

func (h *HCI) Speed() usbhost.Speed {
	if h.Device == nil {
		return usbhost.SpeedInvalid
	}
	return h.Device.Speed
}

func (h *HCI) ResetStart() {
	h.resetWait = h.TransferTicks
}

func (h *HCI) ResetStop() (usbhost.Status, error) {
	if h.resetWait > 0 {
		h.resetWait--
		return usbhost.StatusXferWait, nil
	}
	return usbhost.StatusOK, nil
}

func (h *HCI) PipeAlloc(t usbhost.TransferType) (uint8, error) {
	h.pipes = append(h.pipes, t)
	return uint8(len(h.pipes) - 1), nil
}

func (h *HCI) PipeDealloc(handle uint8) error {
	return nil
}

func (h *HCI) PipeConfigure(dev *usbhost.Device, p *usbhost.Pipe) error {
	return nil
}

func (h *HCI) MsgPipeConfigure(dev *usbhost.Device, p *usbhost.MessagePipe) error {
	return nil
}

// CtrlXferStart fulfills req immediately by copying from the scripted
// device's descriptor bytes (for GetDescriptor requests) or succeeding
// trivially (SetAddress/SetConfiguration); Status then paces how many
// polls it takes to observe completion.
func (h *HCI) CtrlXferStart(dev *usbhost.Device, p *usbhost.MessagePipe) error {
	h.xferWait[p.Handle] = h.TransferTicks

	sd := h.deviceFor(dev)

	if sd != nil && sd.StallOnce && !sd.primed {
		sd.primed = true
		sd.stalled = true
		h.ctrlXferBuf[p.Handle] = nil
		return nil
	}

	req := p.Request

	hubPortReq := usbhost.RequestDirectionIn | usbhost.RequestTypeClass | usbhost.RequestRecipientOther
	if req.BmRequestType == hubPortReq && req.BRequest == usbhost.ReqGetStatus {
		var buf [4]byte
		if port, ok := h.Hubs[dev.Index()][uint8(req.WIndex-1)]; ok {
			var status, change uint16
			if port.Connected {
				status |= portStatusConnection
				switch port.Speed {
				case usbhost.SpeedLow:
					status |= portStatusLowSpeed
				case usbhost.SpeedHigh:
					status |= portStatusHighSpeed
				}
			}
			if port.Connected != port.acked {
				change |= portChangeConnection
			}
			binary.LittleEndian.PutUint16(buf[0:2], status)
			binary.LittleEndian.PutUint16(buf[2:4], change)
		}
		n := len(buf)
		if int(req.WLength) < n {
			n = int(req.WLength)
		}
		copy(p.Buffer, buf[:n])
		h.ctrlXferBuf[p.Handle] = p.Buffer[:n]
		return nil
	}

	hubClearFeature := usbhost.RequestDirectionOut | usbhost.RequestTypeClass | usbhost.RequestRecipientOther
	if req.BmRequestType == hubClearFeature && req.BRequest == usbhost.ReqClearFeature {
		if port, ok := h.Hubs[dev.Index()][uint8(req.WIndex-1)]; ok {
			port.acked = port.Connected
		}
		return nil
	}

	if req.BRequest == usbhost.ReqGetDescriptor {
		descType := usbhost.DescriptorType(req.WValue >> 8)
		var src []byte
		if sd != nil {
			switch descType {
			case usbhost.DescriptorTypeDevice:
				src = sd.DeviceDescriptor
			case usbhost.DescriptorTypeConfig:
				src = sd.ConfigDescriptor
			}
		}
		n := len(src)
		if int(req.WLength) < n {
			n = int(req.WLength)
		}
		if n > 0 {
			copy(p.Buffer, src[:n])
		}
		h.ctrlXferBuf[p.Handle] = p.Buffer[:n]
	}
	return nil
}

func (h *HCI) CtrlXferCancel(dev *usbhost.Device, p *usbhost.MessagePipe) {
	delete(h.xferWait, p.Handle)
}

func (h *HCI) CtrlXferStatus(dev *usbhost.Device, p *usbhost.MessagePipe) (usbhost.Status, error) {
	wait, ok := h.xferWait[p.Handle]
	if ok && wait > 0 {
		h.xferWait[p.Handle] = wait - 1
		return usbhost.StatusXferWait, nil
	}
	delete(h.xferWait, p.Handle)

	sd := h.deviceFor(dev)
	if sd != nil && sd.StallOnce && sd.stalled {
		sd.stalled = false // only stall once
		return usbhost.StatusEndpointStalled, nil
	}

	p.Actual = len(h.ctrlXferBuf[p.Handle])
	return usbhost.StatusXferDone, nil
}

func (h *HCI) XferStart(dev *usbhost.Device, p *usbhost.Pipe) error {
	h.xferWait[p.Handle] = h.TransferTicks
	return nil
}

func (h *HCI) XferCancel(dev *usbhost.Device, p *usbhost.Pipe) {
	delete(h.xferWait, p.Handle)
}

func (h *HCI) XferStatus(dev *usbhost.Device, p *usbhost.Pipe) (usbhost.Status, error) {
	wait, ok := h.xferWait[p.Handle]
	if ok && wait > 0 {
		h.xferWait[p.Handle] = wait - 1
		return usbhost.StatusXferWait, nil
	}
	delete(h.xferWait, p.Handle)
	p.Actual = uint32(len(p.Buffer))
	return usbhost.StatusXferDone, nil
}
