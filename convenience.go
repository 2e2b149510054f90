package usbhost

import (
	"context"
	"time"
)

// pollInterval is how often ctrlRaw/Bulk re-check an in-flight IRP. It
// only paces the polling goroutine itself; it has no bearing on how often
// Stack.Run is invoked by its own caller.
const pollInterval = time.Millisecond

// Ctrl issues a raw control transfer and blocks until it completes or ctx
// is done, directly grounded on the teacher's ioctl-backed Device.Ctrl:
// there the kernel blocked inside the ioctl call, here the call instead
// spins the non-blocking IRP machinery underneath.
func (d *Device) Ctrl(ctx context.Context, req StandardRequest, buf []byte) (int, error) {
	return d.ctrlRaw(ctx, req, buf)
}

// Bulk issues a bulk transfer on interface ifaceIdx's epIdx'th endpoint
// and blocks until it completes or ctx is done, grounded on the teacher's
// Device.Bulk/Device.BulkTimeout.
func (d *Device) Bulk(ctx context.Context, ifaceIdx, epIdx uint8, buf []byte) (int, error) {
	if d.stack == nil {
		return 0, ErrDeviceNotInit
	}
	t, err := d.stack.IRP(d, ifaceIdx, epIdx, buf)
	if err != nil {
		return 0, err
	}
	return d.awaitStream(ctx, ifaceIdx, epIdx, t)
}

// ctrlRaw issues req (with buf as the data stage, if any) via the owning
// Stack's IRP layer and blocks until it completes, mirroring _ctrl_request
// but for caller-initiated requests rather than DSM-internal ones: it goes
// through CtrlIRP (not CtrlIRPBypass), so it refuses devices that haven't
// finished enumerating.
func (d *Device) ctrlRaw(ctx context.Context, req StandardRequest, buf []byte) (int, error) {
	if d.stack == nil {
		return 0, ErrDeviceNotInit
	}
	t, err := d.stack.CtrlIRP(d, req, buf)
	if err != nil {
		return 0, err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.stack.IRPCancel(t)
			return 0, ctx.Err()
		case <-ticker.C:
			status, err := d.stack.IRPStatus(t)
			switch status {
			case StatusXferWait:
				continue
			case StatusXferDone, StatusOK:
				return d.stack.pp.MessagePipe(t.Index).Actual, nil
			default:
				if err == nil {
					err = errorForStatus(status)
				}
				return 0, err
			}
		}
	}
}

func (d *Device) awaitStream(ctx context.Context, ifaceIdx, epIdx uint8, t Ticket) (int, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.stack.IRPCancel(t)
			return 0, ctx.Err()
		case <-ticker.C:
			status, err := d.stack.IRPStatus(t)
			switch status {
			case StatusXferWait:
				continue
			case StatusXferDone, StatusOK:
				return int(d.Interfaces[ifaceIdx].Endpoints[epIdx].Actual), nil
			default:
				if err == nil {
					err = errorForStatus(status)
				}
				return 0, err
			}
		}
	}
}

func errorForStatus(s Status) error {
	switch s {
	case StatusEndpointStalled:
		return ErrEndpointStalled
	case StatusDeviceUnreachable:
		return ErrDeviceNotActive
	default:
		return ErrXferFailed
	}
}
