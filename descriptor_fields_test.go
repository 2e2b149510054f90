package usbhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleDeviceDescriptor() []byte {
	return []byte{
		18, 1, // bLength, bDescriptorType
		0x00, 0x02, // bcdUSB
		0, 0, 0, // class/subclass/protocol
		64,         // bMaxPacketSize0
		0x34, 0x12, // idVendor = 0x1234
		0x78, 0x56, // idProduct = 0x5678
		0, 1, // bcdDevice
		0, 0, 0, // string indices
		2, // bNumConfigurations
	}
}

func TestDeviceDescriptorFields(t *testing.T) {
	b := sampleDeviceDescriptor()
	assert.EqualValues(t, 64, DevDescGetBMaxPacketSize0(b))
	assert.EqualValues(t, 0x1234, DevDescGetIDVendor(b))
	assert.EqualValues(t, 0x5678, DevDescGetIDProduct(b))
	assert.EqualValues(t, 2, DevDescGetBNumConfigurations(b))
}

func TestGoToNextDesc(t *testing.T) {
	buf := []byte{
		9, byte(DescriptorTypeConfig), 0, 0, 1, 1, 0, 0, 50,
		9, byte(DescriptorTypeInterface), 0, 0, 1, 0xFF, 0, 0, 0,
		7, byte(DescriptorTypeEndpoint), 0x81, 2, 64, 0, 0,
	}

	rest, ok := goToNextDesc(buf, DescriptorTypeInterface)
	assert.True(t, ok)
	assert.Equal(t, DescriptorTypeInterface, IfaceDescGetBDescriptorType(rest))

	rest, ok = goToNextDesc(rest[IfaceDescSize:], DescriptorTypeEndpoint)
	assert.True(t, ok)
	assert.EqualValues(t, 0x81, EpDescGetBEndpointAddress(rest))
	assert.EqualValues(t, 64, EpDescGetWMaxPacketSize(rest))

	_, ok = goToNextDesc(nil, DescriptorTypeEndpoint)
	assert.False(t, ok)
}
