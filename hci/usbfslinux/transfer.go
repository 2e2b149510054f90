package usbfslinux

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func (h *HCI) ioctl(req uint32, arg interface{}) error {
	return h.ioctlFd(h.fd, req, arg)
}

func (h *HCI) ioctlFd(fd int, req uint32, arg interface{}) error {
	var ptr uintptr
	switch v := arg.(type) {
	case nil:
		ptr = 0
	case *usbdevfsConnectInfo:
		ptr = uintptr(unsafe.Pointer(v))
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), ptr)
	if errno != 0 {
		return errno
	}
	return nil
}

func ctrlTransferIoctl(fd int, data *usbdevfsCtrlTransfer) (int, error) {
	n, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(ctlControl), uintptr(unsafe.Pointer(data)))
	if errno != 0 {
		return int(n), errno
	}
	return int(n), nil
}

func bulkTransferIoctl(fd int, data *usbdevfsBulkTransfer) (int, error) {
	n, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(ctlBulk), uintptr(unsafe.Pointer(data)))
	if errno != 0 {
		return int(n), errno
	}
	return int(n), nil
}

func (h *HCI) setPending(handle uint8, t *transfer, _ bool) {
	if int(handle) < len(h.pipes) {
		h.pipes[handle].pending = t
	}
}

func (h *HCI) clearPending(handle uint8, _ bool) {
	if int(handle) < len(h.pipes) {
		h.pipes[handle].pending = nil
	}
}

func (h *HCI) pendingCtrl(handle uint8) *transfer {
	if int(handle) < len(h.pipes) {
		return h.pipes[handle].pending
	}
	return nil
}

func (h *HCI) pendingStream(handle uint8) *transfer {
	return h.pendingCtrl(handle)
}
