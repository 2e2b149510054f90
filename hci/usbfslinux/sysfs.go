package usbfslinux

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const sysfsUSBDevices = "/sys/bus/usb/devices"

// DeviceInfo is what FindDevices reports about one enumerated node: enough
// to call Open(BusNumber, DeviceNumber) and nothing more. The teacher's
// sysfs.go tried to also read and parse each device's descriptor here
// (readDescriptorHeader/parseDescriptor, the latter calling a
// createDescriptor function that did not exist anywhere in that package)
// - that job now belongs to the DSM's own GetDescriptor state once the
// device is attached, not to discovery.
type DeviceInfo struct {
	BusNumber    int
	DeviceNumber int
	VendorID     uint16
	ProductID    uint16
}

func readSysfsAttrInt(dir, name string, base int) (int, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseInt(s, base, 32)
	return int(v), err
}

func readSysfsAttrHex16(dir, name string) (uint16, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// EnumerateDevices walks /sys/bus/usb/devices and reports every entry
// that looks like a real device node (busnum+devnum present), skipping
// interface-only entries (named "N-M.P:C.I").
func EnumerateDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysfsUSBDevices)
	if err != nil {
		return nil, err
	}
	var out []DeviceInfo
	for _, e := range entries {
		if strings.Contains(e.Name(), ":") {
			continue // interface node, not a device node
		}
		dir := filepath.Join(sysfsUSBDevices, e.Name())
		bus, err := readSysfsAttrInt(dir, "busnum", 10)
		if err != nil {
			continue
		}
		dev, err := readSysfsAttrInt(dir, "devnum", 10)
		if err != nil {
			continue
		}
		vendor, _ := readSysfsAttrHex16(dir, "idVendor")
		product, _ := readSysfsAttrHex16(dir, "idProduct")
		out = append(out, DeviceInfo{
			BusNumber:    bus,
			DeviceNumber: dev,
			VendorID:     vendor,
			ProductID:    product,
		})
	}
	return out, nil
}

// FindDevices filters EnumerateDevices by vendor/product, 0 meaning
// "don't care" for that field.
func FindDevices(vendor, product uint16) ([]DeviceInfo, error) {
	all, err := EnumerateDevices()
	if err != nil {
		return nil, err
	}
	var out []DeviceInfo
	for _, d := range all {
		if vendor != 0 && d.VendorID != vendor {
			continue
		}
		if product != 0 && d.ProductID != product {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
