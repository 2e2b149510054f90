package usbhost

import "github.com/pkg/errors"

// Status mirrors the host stack's internal status codes. Most of the DSM's
// state functions return one of these instead of a Go error, since states
// like StatusXferWait are routine control flow, not failure.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidParam
	StatusDeviceNotFound
	StatusNoDriver
	StatusEndpointNotFound
	StatusDriverFailed
	StatusPipeConfigFailed
	StatusHCIInitFailed
	StatusInvalidDescriptor
	StatusEndpointUnavailable
	StatusEndpointStalled
	StatusDeviceUnreachable
	StatusBusy
	StatusXferError
	StatusXferWait
	StatusXferDone
	StatusInterfaceConfigFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidParam:
		return "invalid parameter"
	case StatusDeviceNotFound:
		return "device not found"
	case StatusNoDriver:
		return "no driver"
	case StatusEndpointNotFound:
		return "endpoint not found"
	case StatusDriverFailed:
		return "driver failed"
	case StatusPipeConfigFailed:
		return "pipe configuration failed"
	case StatusHCIInitFailed:
		return "hci init failed"
	case StatusInvalidDescriptor:
		return "invalid descriptor"
	case StatusEndpointUnavailable:
		return "no endpoints available"
	case StatusEndpointStalled:
		return "endpoint stalled"
	case StatusDeviceUnreachable:
		return "device unreachable"
	case StatusBusy:
		return "busy"
	case StatusXferError:
		return "transfer error"
	case StatusXferWait:
		return "transfer in progress"
	case StatusXferDone:
		return "transfer done"
	case StatusInterfaceConfigFailed:
		return "interface configuration failed"
	default:
		return "unknown status"
	}
}

// Sentinel errors returned across package boundaries (pipe pool, registry,
// IRP layer). Callers compare with errors.Is; lower layers wrap these with
// errors.Wrap to add context (which endpoint, which device) without losing
// the sentinel identity.
var (
	ErrInvalidParam      = errors.New("usbhost: invalid parameter")
	ErrNoFreePipe        = errors.New("usbhost: no free message pipe")
	ErrPipeNotOwned      = errors.New("usbhost: pipe not owned by caller")
	ErrNoDriver          = errors.New("usbhost: no driver claimed interface")
	ErrDeviceNotActive   = errors.New("usbhost: device not active")
	ErrDeviceNotInit     = errors.New("usbhost: device not finished enumerating")
	ErrConfigNotFound    = errors.New("usbhost: no configuration template matches device")
	ErrDescriptorTooLong = errors.New("usbhost: descriptor exceeds transfer buffer")
	ErrUnknownTicket     = errors.New("usbhost: ticket refers to unknown pipe kind")
	ErrXferFailed        = errors.New("usbhost: transfer failed")
	ErrEndpointStalled   = errors.New("usbhost: endpoint stalled")
)
