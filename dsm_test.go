package usbhost_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/112358fn/usbhost"
	"github.com/112358fn/usbhost/drivers"
	"github.com/112358fn/usbhost/hci/fakehci"
)

func deviceDescriptorBytes(vendor, product uint16) []byte {
	b := make([]byte, usbhost.DevDescSize)
	b[0] = usbhost.DevDescSize
	b[1] = byte(usbhost.DescriptorTypeDevice)
	b[7] = 64 // bMaxPacketSize0
	b[8] = byte(vendor)
	b[9] = byte(vendor >> 8)
	b[10] = byte(product)
	b[11] = byte(product >> 8)
	b[17] = 1 // bNumConfigurations
	return b
}

// configDescriptorBytes builds a configuration descriptor with a single
// vendor-specific interface and no endpoints, so enumeration doesn't
// depend on the driver registry having claimed anything.
func configDescriptorBytes() []byte {
	total := usbhost.CfgDescSize + usbhost.IfaceDescSize
	b := make([]byte, total)
	b[0] = usbhost.CfgDescSize
	b[1] = byte(usbhost.DescriptorTypeConfig)
	b[2] = byte(total)
	b[3] = byte(total >> 8)
	b[4] = 1 // bNumInterfaces
	b[5] = 1 // bConfigurationValue

	ifaceOff := usbhost.CfgDescSize
	b[ifaceOff+0] = usbhost.IfaceDescSize
	b[ifaceOff+1] = byte(usbhost.DescriptorTypeInterface)
	b[ifaceOff+4] = 0                                    // bNumEndpoints
	b[ifaceOff+5] = byte(usbhost.ClassCodeVendorSpecific) // bInterfaceClass
	return b
}

// runUntilConfigured pumps Tick+Run until the root device reaches
// StateConfigured or the iteration budget is exhausted, mirroring how a
// real main loop would drive the host orchestrator one millisecond at a
// time.
func runUntilConfigured(t *testing.T, stack *usbhost.Stack, maxIterations int) *usbhost.Device {
	t.Helper()
	for i := 0; i < maxIterations; i++ {
		stack.Tick()
		stack.Run()
		if d := stack.RootDevice(); d != nil && d.State == usbhost.StateConfigured {
			return d
		}
	}
	t.Fatalf("device did not reach StateConfigured within %d ticks", maxIterations)
	return nil
}

func TestEnumerationReachesConfigured(t *testing.T) {
	h := fakehci.New()
	h.Connected = true
	h.Device = &fakehci.ScriptedDevice{
		Speed:            usbhost.SpeedFull,
		DeviceDescriptor: deviceDescriptorBytes(0x1234, 0x5678),
		ConfigDescriptor: configDescriptorBytes(),
	}

	registry := usbhost.NewDriverRegistry()
	stack := usbhost.NewStack(h, registry, usbhost.DefaultConfigTemplates())
	require.NoError(t, stack.Init())

	d := runUntilConfigured(t, stack, 2000)
	require.EqualValues(t, 0x1234, d.VendorID)
	require.EqualValues(t, 0x5678, d.ProductID)
	require.EqualValues(t, 1, d.CfgValue)
	require.EqualValues(t, 1, d.NumIfaces)
}

func TestEnumerationSurvivesOneStall(t *testing.T) {
	h := fakehci.New()
	h.Connected = true
	h.Device = &fakehci.ScriptedDevice{
		Speed:            usbhost.SpeedFull,
		DeviceDescriptor: deviceDescriptorBytes(0xCAFE, 0xBABE),
		ConfigDescriptor: configDescriptorBytes(),
		StallOnce:        true,
	}

	registry := usbhost.NewDriverRegistry()
	stack := usbhost.NewStack(h, registry, usbhost.DefaultConfigTemplates())
	require.NoError(t, stack.Init())

	d := runUntilConfigured(t, stack, 2000)
	require.EqualValues(t, 0xCAFE, d.VendorID)
}

func TestDisconnectReleasesDevice(t *testing.T) {
	h := fakehci.New()
	h.Connected = true
	h.Device = &fakehci.ScriptedDevice{
		Speed:            usbhost.SpeedFull,
		DeviceDescriptor: deviceDescriptorBytes(0x1111, 0x2222),
		ConfigDescriptor: configDescriptorBytes(),
	}

	registry := usbhost.NewDriverRegistry()
	stack := usbhost.NewStack(h, registry, usbhost.DefaultConfigTemplates())
	require.NoError(t, stack.Init())
	runUntilConfigured(t, stack, 2000)

	h.Connected = false
	stack.Tick()
	stack.Run()
	require.Nil(t, stack.RootDevice())
}

// hubConfigDescriptorBytes builds a configuration descriptor for a single
// hub-class interface with the one status-change interrupt endpoint
// drivers.Hub's Probe requires.
func hubConfigDescriptorBytes() []byte {
	total := usbhost.CfgDescSize + usbhost.IfaceDescSize + usbhost.EpDescSize
	b := make([]byte, total)
	b[0] = usbhost.CfgDescSize
	b[1] = byte(usbhost.DescriptorTypeConfig)
	b[2] = byte(total)
	b[3] = byte(total >> 8)
	b[4] = 1 // bNumInterfaces
	b[5] = 1 // bConfigurationValue

	ifaceOff := usbhost.CfgDescSize
	b[ifaceOff+0] = usbhost.IfaceDescSize
	b[ifaceOff+1] = byte(usbhost.DescriptorTypeInterface)
	b[ifaceOff+4] = 1                                // bNumEndpoints
	b[ifaceOff+5] = byte(usbhost.ClassCodeDeviceHub)  // bInterfaceClass

	epOff := ifaceOff + usbhost.IfaceDescSize
	b[epOff+0] = usbhost.EpDescSize
	b[epOff+1] = byte(usbhost.DescriptorTypeEndpoint)
	b[epOff+2] = 0x81 // IN, endpoint 1
	b[epOff+3] = byte(usbhost.TransferTypeInterrupt)
	b[epOff+4] = 1 // wMaxPacketSize low byte
	b[epOff+6] = 10 // bInterval
	return b
}

// TestHubDownstreamAttachAndRelease drives a hub attached to the root port
// through enumeration, scripts a connect event on one of its downstream
// ports, and checks the device that appears there enumerates with the
// right parent/port/address, then checks that disconnecting it at the
// root cascades release down through the hub's child, exercising the
// HUB-tree attach/release path the HubDriver interface exists for.
func TestHubDownstreamAttachAndRelease(t *testing.T) {
	h := fakehci.New()
	h.Connected = true
	h.Device = &fakehci.ScriptedDevice{
		Speed:            usbhost.SpeedFull,
		DeviceDescriptor: deviceDescriptorBytes(0x0424, 0x2514), // a real hub VID/PID
		ConfigDescriptor: hubConfigDescriptorBytes(),
	}
	h.DeviceByIndex = map[uint8]*fakehci.ScriptedDevice{
		1: {
			Speed:            usbhost.SpeedFull,
			DeviceDescriptor: deviceDescriptorBytes(0xDEAD, 0xBEEF),
			ConfigDescriptor: configDescriptorBytes(),
		},
	}
	h.Hubs = map[uint8]map[uint8]*fakehci.HubPort{
		0: {0: {Connected: false}},
	}

	registry := usbhost.NewDriverRegistry(drivers.NewHub())
	stack := usbhost.NewStack(h, registry, usbhost.DefaultConfigTemplates())
	require.NoError(t, stack.Init())

	hub := runUntilConfigured(t, stack, 2000)
	require.EqualValues(t, 1, hub.Addr)

	h.Hubs[0][0].Connected = true

	var child *usbhost.Device
	for i := 0; i < 2000; i++ {
		stack.Tick()
		stack.Run()
		if c := stack.DeviceAt(1); c != nil && c.State == usbhost.StateConfigured {
			child = c
			break
		}
	}
	require.NotNil(t, child, "downstream device never reached StateConfigured")
	require.EqualValues(t, 0, child.ParentHub)
	require.EqualValues(t, 0, child.ParentPort)
	require.EqualValues(t, 2, child.Addr)
	require.EqualValues(t, 0xDEAD, child.VendorID)

	h.Connected = false
	stack.Tick()
	stack.Run()
	require.Nil(t, stack.RootDevice())
	require.Nil(t, stack.DeviceAt(1), "hub's child must be released when the hub itself is released")
}
