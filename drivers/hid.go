package drivers

import (
	"context"

	"github.com/112358fn/usbhost"
)

// HID class-specific descriptor type and request codes (HID 1.11 ยง7),
// re-grounded here on the IRP-mediated Device.Ctrl/Device.Bulk contract
// instead of the teacher's synchronous ioctl-backed hid.Device.
const (
	descriptorTypeHID     = 0x21
	descriptorTypeReport  = 0x22
	descriptorTypePhysical = 0x23

	reqGetReport   = 0x01
	reqGetIdle     = 0x02
	reqGetProtocol = 0x03
	reqSetReport   = 0x09
	reqSetIdle     = 0x0A
	reqSetProtocol = 0x0B

	reportTypeInput   = 1
	reportTypeOutput  = 2
	reportTypeFeature = 3
)

// hidState is one claimed HID interface's bookkeeping: which endpoint
// index is the interrupt IN report pipe, and which is interrupt OUT (if
// any), so Read/Write don't have to re-scan Interface.Endpoints.
type hidState struct {
	iface  uint8
	inEp   uint8
	hasOut bool
	outEp  uint8
}

// Hid is the generic HID class driver: it claims any boot or report
// protocol HID interface and exposes its interrupt report pipe plus the
// class-specific GetReport/SetReport/GetIdle/SetIdle control requests,
// directly grounded on the teacher's hid.Device (NewHIDDevice, Read,
// GetReport, SetIdle) but driven through IRP instead of a raw ioctl.
type Hid struct {
	devices map[uint8]*hidState // keyed by (Device.Index()<<4 | iface)
}

func NewHid() *Hid {
	return &Hid{devices: make(map[uint8]*hidState)}
}

func (h *Hid) VendorID() uint16  { return usbhost.ForceProbingID }
func (h *Hid) ProductID() uint16 { return usbhost.ForceProbingID }

func (h *Hid) Probe(dev *usbhost.Device, buffer []byte) bool {
	if len(buffer) < usbhost.IfaceDescSize {
		return false
	}
	return usbhost.IfaceDescGetBInterfaceClass(buffer) == usbhost.ClassCodeInterfaceHID
}

func key(dev *usbhost.Device, ifaceIdx uint8) uint8 {
	return dev.Index()<<4 | (ifaceIdx & 0x0F)
}

// Assign locates the interrupt IN (and, if present, OUT) endpoint among
// the interface's already-configured pipes.
func (h *Hid) Assign(stack *usbhost.Stack, dev *usbhost.Device, ifaceIdx uint8, buffer []byte) error {
	iface := &dev.Interfaces[ifaceIdx]
	st := &hidState{iface: ifaceIdx, inEp: usbhost.NoDriver}
	for e := uint8(0); e < iface.NumEps; e++ {
		ep := &iface.Endpoints[e]
		if ep.Type != usbhost.TransferTypeInterrupt {
			continue
		}
		if ep.Dir == usbhost.DirIn {
			st.inEp = e
		} else {
			st.hasOut = true
			st.outEp = e
		}
	}
	if st.inEp == usbhost.NoDriver {
		return usbhost.ErrEndpointStalled
	}
	h.devices[key(dev, ifaceIdx)] = st
	return nil
}

func (h *Hid) Remove(stack *usbhost.Stack, dev *usbhost.Device, ifaceIdx uint8) error {
	delete(h.devices, key(dev, ifaceIdx))
	return nil
}

// Read blocks for the next interrupt IN report.
func (h *Hid) Read(ctx context.Context, dev *usbhost.Device, ifaceIdx uint8, buf []byte) (int, error) {
	st, ok := h.devices[key(dev, ifaceIdx)]
	if !ok {
		return 0, usbhost.ErrNoDriver
	}
	return dev.Bulk(ctx, ifaceIdx, st.inEp, buf)
}

// Write sends buf out the interrupt OUT endpoint, if the interface has one.
func (h *Hid) Write(ctx context.Context, dev *usbhost.Device, ifaceIdx uint8, buf []byte) (int, error) {
	st, ok := h.devices[key(dev, ifaceIdx)]
	if !ok || !st.hasOut {
		return 0, usbhost.ErrNoDriver
	}
	return dev.Bulk(ctx, ifaceIdx, st.outEp, buf)
}

func classIfaceRequest(dir usbhost.RequestType, bRequest uint8, value uint16, ifaceIdx uint8) usbhost.StandardRequest {
	return usbhost.StandardRequest{
		BmRequestType: dir | usbhost.RequestTypeClass | usbhost.RequestRecipientInterface,
		BRequest:      bRequest,
		WValue:        value,
		WIndex:        uint16(ifaceIdx),
	}
}

// GetReport issues the HID GetReport control request.
func (h *Hid) GetReport(ctx context.Context, dev *usbhost.Device, ifaceIdx uint8, reportType, reportID uint8, buf []byte) (int, error) {
	req := classIfaceRequest(usbhost.RequestDirectionIn, reqGetReport, uint16(reportType)<<8|uint16(reportID), ifaceIdx)
	req.WLength = uint16(len(buf))
	return dev.Ctrl(ctx, req, buf)
}

// SetReport issues the HID SetReport control request.
func (h *Hid) SetReport(ctx context.Context, dev *usbhost.Device, ifaceIdx uint8, reportType, reportID uint8, buf []byte) error {
	req := classIfaceRequest(usbhost.RequestDirectionOut, reqSetReport, uint16(reportType)<<8|uint16(reportID), ifaceIdx)
	req.WLength = uint16(len(buf))
	_, err := dev.Ctrl(ctx, req, buf)
	return err
}

// GetIdle issues the HID GetIdle control request.
func (h *Hid) GetIdle(ctx context.Context, dev *usbhost.Device, ifaceIdx, reportID uint8) (uint8, error) {
	buf := make([]byte, 1)
	req := classIfaceRequest(usbhost.RequestDirectionIn, reqGetIdle, uint16(reportID), ifaceIdx)
	req.WLength = 1
	if _, err := dev.Ctrl(ctx, req, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// SetIdle issues the HID SetIdle control request; duration is in 4ms
// units per the HID spec, 0 meaning "report only on change".
func (h *Hid) SetIdle(ctx context.Context, dev *usbhost.Device, ifaceIdx, reportID, duration uint8) error {
	req := classIfaceRequest(usbhost.RequestDirectionOut, reqSetIdle, uint16(duration)<<8|uint16(reportID), ifaceIdx)
	_, err := dev.Ctrl(ctx, req, nil)
	return err
}
