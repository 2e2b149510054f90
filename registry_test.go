package usbhost

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type stubDriver struct {
	vendor, product uint16
	accepts         bool
	assigned        bool
}

func (d *stubDriver) VendorID() uint16  { return d.vendor }
func (d *stubDriver) ProductID() uint16 { return d.product }
func (d *stubDriver) Probe(dev *Device, buffer []byte) bool { return d.accepts }
func (d *stubDriver) Assign(stack *Stack, dev *Device, ifaceIdx uint8, buffer []byte) error {
	d.assigned = true
	return nil
}
func (d *stubDriver) Remove(stack *Stack, dev *Device, ifaceIdx uint8) error { return nil }

func TestDriverRegistryProbeOrder(t *testing.T) {
	specific := &stubDriver{vendor: 0x1234, product: 0x5678, accepts: true}
	generic := &stubDriver{vendor: ForceProbingID, product: ForceProbingID, accepts: true}
	reg := NewDriverRegistry(specific, generic)

	dev := &Device{VendorID: 0x1234, ProductID: 0x5678}
	require.Equal(t, 0, reg.Probe(dev, nil))

	other := &Device{VendorID: 0x9999, ProductID: 0x1111}
	require.Equal(t, 1, reg.Probe(other, nil))
}

func TestDriverRegistryNoMatch(t *testing.T) {
	reg := NewDriverRegistry(&stubDriver{vendor: 0x1, product: 0x1, accepts: true})
	dev := &Device{VendorID: 0x2, ProductID: 0x2}
	require.Equal(t, -1, reg.Probe(dev, nil))
}
