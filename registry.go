package usbhost

// ForceProbingID makes a Driver's VendorID/ProductID filter match any
// device, mirroring USB_FORCE_PROBING_ID (0xFFFF) from the original.
const ForceProbingID = 0xFFFF

// Driver is a class driver's binding contract: Probe decides whether this
// driver recognizes an interface from its raw descriptor bytes, Assign
// binds it once endpoints are configured, Remove unbinds it on release.
// Registry order is the driver's priority: the first Driver whose filter
// matches and whose Probe accepts the interface wins, so place
// special-cased drivers ahead of general ones (a vendor HID variant ahead
// of the generic HID driver, the HUB driver ahead of everything since a
// HUB interface must never fall through to a class driver).
type Driver interface {
	// VendorID/ProductID restrict probing to devices with matching IDs;
	// ForceProbingID in either field disables that half of the filter.
	VendorID() uint16
	ProductID() uint16

	// Probe inspects an interface descriptor (and whatever trails it up to
	// the next interface boundary) and reports whether this driver
	// recognizes it.
	Probe(dev *Device, buffer []byte) bool

	// Assign binds the driver to interface ifaceIdx of dev once its
	// endpoints are configured. A non-nil error unwinds the endpoint
	// configuration already performed for this interface.
	Assign(stack *Stack, dev *Device, ifaceIdx uint8, buffer []byte) error

	// Remove unbinds the driver from interface ifaceIdx; called before its
	// endpoints are released.
	Remove(stack *Stack, dev *Device, ifaceIdx uint8) error
}

// PortResetter is implemented by drivers (the HUB driver, in practice)
// capable of driving bus reset on one of their own downstream ports. The
// DSM calls through this interface instead of the HCI directly whenever a
// device's ParentHub isn't ParentRoot, mirroring how _port_reset in the
// original routed a non-root reset through the owning hub.
type PortResetter interface {
	PortReset(stack *Stack, hubDev *Device, port uint8)
	PortResetStatus(stack *Stack, hubDev *Device, port uint8) (Status, error)
}

// HubDriver is the full HUB driver contract beyond the generic Driver
// triple: port reset (PortResetter), per-port speed, the hub's own bus
// address, and a periodic Update the Host Orchestrator calls once per
// Configured hub device per Run to discover downstream connect/disconnect
// events, mirroring usb_hub_get_speed/usb_hub_update and the
// hub_idx/port-indexed hub driver contract.
type HubDriver interface {
	Driver
	PortResetter

	// GetSpeed reports the negotiated speed of whatever currently occupies
	// port on hubDev, valid once the port has completed reset.
	GetSpeed(stack *Stack, hubDev *Device, port uint8) (Speed, error)

	// GetAddress returns hubDev's own bus address, for a driver that needs
	// to identify the hub itself rather than one of its ports.
	GetAddress(stack *Stack, hubDev *Device) uint8

	// Update polls for downstream port connect/disconnect changes and
	// drives Stack.AttachDownstream/ReleaseFromPort accordingly. Called at
	// most once per Run per Configured hub device; must not block.
	Update(stack *Stack, hubDev *Device)
}

// DriverRegistry is the ordered driver table (DR). Order is priority:
// register HUB drivers before general class drivers.
type DriverRegistry struct {
	drivers []Driver
}

func NewDriverRegistry(drivers ...Driver) *DriverRegistry {
	return &DriverRegistry{drivers: append([]Driver(nil), drivers...)}
}

// Probe returns the index of the first registered driver that matches
// dev's vendor/product filter and accepts buffer, or -1 (NoDriver
// semantics) if none do.
func (r *DriverRegistry) Probe(dev *Device, buffer []byte) int {
	for i, drv := range r.drivers {
		if drv.VendorID() != ForceProbingID && drv.VendorID() != dev.VendorID {
			continue
		}
		if drv.ProductID() != ForceProbingID && drv.ProductID() != dev.ProductID {
			continue
		}
		if drv.Probe(dev, buffer) {
			return i
		}
	}
	return -1
}

func (r *DriverRegistry) at(idx int) Driver {
	if idx < 0 || idx >= len(r.drivers) {
		return nil
	}
	return r.drivers[idx]
}
