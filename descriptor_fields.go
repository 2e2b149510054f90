package usbhost

import "encoding/binary"

// Pure, non-allocating field accessors over raw descriptor bytes. The DSM's
// hot path reads fields directly off the xfer buffer this way; the module
// has no reflect-based or allocating descriptor parser (descriptor.go only
// defines the descriptor type codes and the common header).
//
// Offsets follow USB 2.0 spec tables 9-8 (device), 9-10 (configuration),
// 9-12 (interface) and 9-13 (endpoint).

const (
	DevDescSize = 18
	CfgDescSize = 9
	IfaceDescSize = 9
	EpDescSize    = 7
)

func DevDescGetBMaxPacketSize0(b []byte) uint8 { return b[7] }
func DevDescGetIDVendor(b []byte) uint16       { return binary.LittleEndian.Uint16(b[8:10]) }
func DevDescGetIDProduct(b []byte) uint16      { return binary.LittleEndian.Uint16(b[10:12]) }
func DevDescGetBNumConfigurations(b []byte) uint8 { return b[17] }

func CfgDescGetWTotalLength(b []byte) uint16        { return binary.LittleEndian.Uint16(b[2:4]) }
func CfgDescGetBNumInterfaces(b []byte) uint8       { return b[4] }
func CfgDescGetBConfigurationValue(b []byte) uint8  { return b[5] }
func CfgDescGetBmAttributes(b []byte) uint8         { return b[7] }
func CfgDescGetBMaxPower(b []byte) uint8            { return b[8] }

const (
	CfgAttrSelfPowered  = 1 << 6
	CfgAttrRemoteWakeup = 1 << 5
)

func IfaceDescGetBDescriptorType(b []byte) DescriptorType   { return DescriptorType(b[1]) }
func IfaceDescGetBNumEndpoints(b []byte) uint8              { return b[4] }
func IfaceDescGetBInterfaceClass(b []byte) ClassCode        { return ClassCode(b[5]) }
func IfaceDescGetBInterfaceSubClass(b []byte) SubClass      { return SubClass(b[6]) }
func IfaceDescGetBInterfaceProtocol(b []byte) uint8         { return b[7] }

func EpDescGetBEndpointAddress(b []byte) uint8 { return b[2] }
func EpDescGetBmAttributes(b []byte) uint8     { return b[3] }
func EpDescGetWMaxPacketSize(b []byte) uint16  { return binary.LittleEndian.Uint16(b[4:6]) & 0x7FF }
func EpDescGetBInterval(b []byte) uint8        { return b[6] }

// goToNextDesc advances buf/length past descriptors until it finds one of
// descType, or runs out of bytes. It mirrors usb_goto_next_desc: class- and
// vendor-specific descriptors are skipped transparently because every
// descriptor's first byte (bLength) is always its length.
func goToNextDesc(buf []byte, descType DescriptorType) ([]byte, bool) {
	for len(buf) >= 2 {
		if DescriptorType(buf[1]) == descType {
			return buf, true
		}
		l := buf[0]
		if l == 0 || int(l) > len(buf) {
			return buf, false
		}
		buf = buf[l:]
	}
	return buf, false
}
