package usbhost

// ConfigTemplate is one compile-time entry of the Configuration Template
// table: for a given (VendorID, ProductID) pair it records how many
// interfaces the device's configuration descriptor is expected to carry
// and how many endpoints each of them uses, so the fixed-capacity
// Interfaces/Endpoints arrays embedded in Device can be validated against
// real device layout before any driver touches them.
//
// A template with VendorID/ProductID both zero is the wildcard fallback:
// it accepts any device whose descriptor fits within the compiled
// capacities (MaxInterfacesPerDevice, MaxEndpointsPerInterface) without
// checking per-interface endpoint counts. Register specific templates
// ahead of the wildcard to get the original firmware's stricter
// validation for known devices.
type ConfigTemplate struct {
	VendorID          uint16
	ProductID         uint16
	NumInterfaces     uint8
	EndpointsPerIface [MaxInterfacesPerDevice]uint8
}

func (c *ConfigTemplate) matches(vendor, product uint16) bool {
	if c.VendorID == 0 && c.ProductID == 0 {
		return true
	}
	return c.VendorID == vendor && c.ProductID == product
}

// endpointsFor returns the expected endpoint count for an interface index,
// or -1 if the wildcard template imposes no expectation.
func (c *ConfigTemplate) endpointsFor(iface uint8) int {
	if c.VendorID == 0 && c.ProductID == 0 {
		return -1
	}
	return int(c.EndpointsPerIface[iface])
}

// ConfigTemplates is an ordered table; the first matching entry wins,
// exactly like the driver registry's probe order.
type ConfigTemplates []ConfigTemplate

// DefaultConfigTemplates is the wildcard-only table used when a caller
// does not register device-specific templates: it imposes only the
// compiled-in capacity limits, not per-device endpoint-count checks.
func DefaultConfigTemplates() ConfigTemplates {
	return ConfigTemplates{{}}
}

// lookup finds the first template matching vendor/product. It reports no
// match, without scanning, when numIfaces exceeds MaxInterfacesPerDevice;
// a template's own NumInterfaces is not checked here.
func (t ConfigTemplates) lookup(vendor, product uint16, numIfaces uint8) (*ConfigTemplate, bool) {
	if numIfaces > MaxInterfacesPerDevice {
		return nil, false
	}
	for i := range t {
		if t[i].matches(vendor, product) {
			return &t[i], true
		}
	}
	return nil, false
}
