package usbhost

import "fmt"

// DescriptorType identifies the kind of a USB descriptor, taken from its
// second byte (every descriptor starts with bLength, bDescriptorType).
type DescriptorType uint8

// Descriptor is implemented by anything that knows its own type; the DSM
// doesn't use it directly (it reads fixed-offset fields straight off the
// wire in descriptor_fields.go), but drivers can use it when they hand back
// a class-specific descriptor type of their own.
type Descriptor interface {
	Type() DescriptorType
}

// DescriptorHeader is the common bLength/bDescriptorType prefix shared by
// every USB descriptor.
type DescriptorHeader struct {
	Length         uint8
	DescriptorType DescriptorType
}

func (h DescriptorHeader) Type() DescriptorType {
	return h.DescriptorType
}

const (
	DescriptorTypeDevice = DescriptorType(iota + 1)
	DescriptorTypeConfig
	DescriptorTypeString
	DescriptorTypeInterface
	DescriptorTypeEndpoint
)

const (
	DescriptorTypeInterfacePower = DescriptorType(iota + 8)
	DescriptorTypeOTG
	DescriptorTypeDebug
	DescriptorTypeInterfaceAssociation
)

var descriptorTypeNames = map[DescriptorType]string{
	DescriptorTypeDevice:               "Device",
	DescriptorTypeConfig:               "Configuration",
	DescriptorTypeString:               "String",
	DescriptorTypeInterface:            "Interface",
	DescriptorTypeEndpoint:             "Endpoint",
	DescriptorTypeInterfacePower:       "InterfacePower",
	DescriptorTypeOTG:                  "OTG",
	DescriptorTypeDebug:                "Debug",
	DescriptorTypeInterfaceAssociation: "InterfaceAssociation",
}

func (t DescriptorType) String() string {
	if name, ok := descriptorTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%.2X)", uint8(t))
}
