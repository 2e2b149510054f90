package usbhost

import (
	"context"
	"encoding/binary"
)

// Standard request codes (USB 2.0 spec table 9-4).
const (
	ReqGetStatus        = 0x00
	ReqClearFeature     = 0x01
	ReqSetFeature       = 0x03
	ReqSetAddress       = 0x05
	ReqGetDescriptor    = 0x06
	ReqSetDescriptor    = 0x07
	ReqGetConfiguration = 0x08
	ReqSetConfiguration = 0x09
	ReqGetInterface     = 0x0A
	ReqSetInterface     = 0x0B
	ReqSynchFrame       = 0x0C
)

// Suspend options, used as the upper byte of SetFeature's wIndex for the
// FeatureInterfaceFunctionSuspend feature.
const (
	OptionSuspendNormalState        = 0b00
	OptionSuspendLowPower           = 0b01
	OptionSuspendRemoteWakeDisabled = 0b00
	OptionSuspendRemoteWakeEnabled  = 0b10
)

type Feature uint16

const (
	FeatureEndpointHalt             = Feature(0)
	FeatureInterfaceFunctionSuspend = Feature(0)
	FeatureDeviceRemoteWakeUp       = Feature(1)
	FeatureDeviceTestMode           = Feature(2)
)

// StandardRequest is the 8-byte Setup packet of a control transfer, held
// in host byte order here; ToWire encodes it into the little-endian form
// the device expects (mirrors the original's USB_STDREQ_SET_* macros).
type StandardRequest struct {
	BmRequestType RequestType
	BRequest      uint8
	WValue        uint16
	WIndex        uint16
	WLength       uint16
}

func (r StandardRequest) ToWire() [8]byte {
	var w [8]byte
	w[0] = uint8(r.BmRequestType)
	w[1] = r.BRequest
	binary.LittleEndian.PutUint16(w[2:4], r.WValue)
	binary.LittleEndian.PutUint16(w[4:6], r.WIndex)
	binary.LittleEndian.PutUint16(w[6:8], r.WLength)
	return w
}

func getDescriptorRequest(descType DescriptorType, idx uint8, langID uint16, length uint16) StandardRequest {
	return StandardRequest{
		BmRequestType: RequestDirectionIn | RequestTypeStandard | RequestRecipientDevice,
		BRequest:      ReqGetDescriptor,
		WValue:        uint16(descType)<<8 | uint16(idx),
		WIndex:        langID,
		WLength:       length,
	}
}

func setAddressRequest(addr uint16) StandardRequest {
	return StandardRequest{
		BmRequestType: RequestDirectionOut | RequestTypeStandard | RequestRecipientDevice,
		BRequest:      ReqSetAddress,
		WValue:        addr,
	}
}

func setConfigurationRequest(cfgValue uint16) StandardRequest {
	return StandardRequest{
		BmRequestType: RequestDirectionOut | RequestTypeStandard | RequestRecipientDevice,
		BRequest:      ReqSetConfiguration,
		WValue:        cfgValue,
	}
}

// The following wrap the blocking convenience Device.Ctrl (convenience.go)
// with the same request shapes the teacher's stddevice.go exposed over a
// synchronous ioctl; here they ride the non-blocking IRP machinery
// instead, context-cancellable like any other blocking call in this
// module.

// DeviceStatus is the decoded reply of GetDeviceStatus: whether the device
// is self-powered and whether remote wakeup is enabled.
type DeviceStatus struct {
	RemoteWakeup bool
	SelfPowered  bool
}

// ClearFeature disables a feature on the given recipient (device,
// interface, or endpoint idx).
func (d *Device) ClearFeature(ctx context.Context, recipient RequestType, feature Feature, idx uint8) error {
	req := StandardRequest{
		BmRequestType: RequestDirectionOut | RequestTypeStandard | recipient,
		BRequest:      ReqClearFeature,
		WValue:        uint16(feature),
		WIndex:        uint16(idx),
	}
	_, err := d.ctrlRaw(ctx, req, nil)
	return err
}

// SetFeature enables a feature on the given recipient.
func (d *Device) SetFeature(ctx context.Context, recipient RequestType, feature Feature, options, idx uint8) error {
	req := StandardRequest{
		BmRequestType: RequestDirectionOut | RequestTypeStandard | recipient,
		BRequest:      ReqSetFeature,
		WValue:        uint16(feature),
		WIndex:        uint16(options)<<8 | uint16(idx),
	}
	_, err := d.ctrlRaw(ctx, req, nil)
	return err
}

// GetDeviceStatus issues GetStatus(StatusStandard) against the device
// recipient.
func (d *Device) GetDeviceStatus(ctx context.Context) (*DeviceStatus, error) {
	data := make([]byte, 2)
	req := StandardRequest{
		BmRequestType: RequestDirectionIn | RequestTypeStandard | RequestRecipientDevice,
		BRequest:      ReqGetStatus,
		WValue:        uint16(StatusStandard),
		WLength:       2,
	}
	if _, err := d.ctrlRaw(ctx, req, data); err != nil {
		return nil, err
	}
	return &DeviceStatus{
		RemoteWakeup: data[0]&(1<<1) != 0,
		SelfPowered:  data[0]&(1<<0) != 0,
	}, nil
}

// GetStringDescriptor fetches and decodes string descriptor idx in
// language langID (0 requests the supported-languages array instead).
func (d *Device) GetStringDescriptor(ctx context.Context, idx uint8, langID uint16) (string, error) {
	buf := make([]byte, 255)
	req := getDescriptorRequest(DescriptorTypeString, idx, langID, uint16(len(buf)))
	n, err := d.ctrlRaw(ctx, req, buf)
	if err != nil {
		return "", err
	}
	if n < 2 {
		return "", nil
	}
	raw := buf[2:n]
	runes := make([]uint16, len(raw)/2)
	for i := range runes {
		runes[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return decodeUTF16(runes), nil
}

func decodeUTF16(u []uint16) string {
	out := make([]rune, 0, len(u))
	for i := 0; i < len(u); i++ {
		r := rune(u[i])
		if r >= 0xD800 && r < 0xDC00 && i+1 < len(u) {
			r2 := rune(u[i+1])
			if r2 >= 0xDC00 && r2 < 0xE000 {
				out = append(out, ((r-0xD800)<<10|(r2-0xDC00))+0x10000)
				i++
				continue
			}
		}
		out = append(out, r)
	}
	return string(out)
}

