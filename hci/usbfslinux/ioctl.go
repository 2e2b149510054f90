package usbfslinux

import (
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
)

// usbdevfs ioctl numbers and wire structs, from
// /usr/include/linux/usbdevice_fs.h. Re-derived here (rather than kept
// verbatim) because the teacher's copy mixed raw syscall.Syscall calls
// with these numbers; this package drives them through
// golang.org/x/sys/unix instead (see hci.go).
var (
	ctlControl          = ioctl.IOWR('U', 0, unsafe.Sizeof(usbdevfsCtrlTransfer{}))
	ctlBulk             = ioctl.IOWR('U', 2, unsafe.Sizeof(usbdevfsBulkTransfer{}))
	ctlSetInterface     = ioctl.IOR('U', 4, unsafe.Sizeof(usbdevfsSetInterface{}))
	ctlSetConfiguration = ioctl.IOR('U', 5, unsafe.Sizeof(uint32(0)))
	ctlClaimInterface   = ioctl.IOR('U', 15, unsafe.Sizeof(uint32(0)))
	ctlReleaseInterface = ioctl.IOR('U', 16, unsafe.Sizeof(uint32(0)))
	ctlConnectInfo      = ioctl.IOW('U', 17, unsafe.Sizeof(usbdevfsConnectInfo{}))
	ctlReset            = ioctl.IO('U', 20)
	ctlGetSpeed         = ioctl.IO('U', 31)
)

type (
	usbdevfsCtrlTransfer struct {
		RequestType uint8
		Request     uint8
		Value       uint16
		Index       uint16
		Length      uint16
		Timeout     uint32
		Data        uintptr
	}

	usbdevfsBulkTransfer struct {
		Endpoint uint32
		Length   uint32
		Timeout  uint32
		Data     uintptr
	}

	usbdevfsSetInterface struct {
		Interface  uint32
		AltSetting uint32
	}

	usbdevfsConnectInfo struct {
		DevNum uint32
		Slow   uint8
	}
)

func slicePtr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
