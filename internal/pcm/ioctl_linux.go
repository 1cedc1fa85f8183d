//go:build linux

package pcm

import (
	"syscall"
	"unsafe"
)

// ioctl performs a generic ioctl syscall.
func ioctl(fd uintptr, req uintptr, arg uintptr) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, req, arg)
	if errno != 0 {
		return errno
	}

	return nil
}

const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNrShift   = 0
	iocTypeShift = iocNrShift + 8
	iocSizeShift = iocTypeShift + 8
	iocDirShift  = iocSizeShift + 14
)

// ioc builds an ioctl request code the way the kernel _IOC macro does.
func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNrShift) | (size << iocSizeShift)
}

var (
	ioctlInfo         = ioc(iocRead, 'A', 0x01, unsafe.Sizeof(pcmInfo{}))
	ioctlHwParams     = ioc(iocRead|iocWrite, 'A', 0x11, unsafe.Sizeof(hwParams{}))
	ioctlSwParams     = ioc(iocRead|iocWrite, 'A', 0x13, unsafe.Sizeof(swParams{}))
	ioctlPrepare      = ioc(iocNone, 'A', 0x40, 0)
	ioctlStart        = ioc(iocNone, 'A', 0x42, 0)
	ioctlDrop         = ioc(iocNone, 'A', 0x43, 0)
	ioctlWriteIFrames = ioc(iocWrite, 'A', 0x50, unsafe.Sizeof(xferi{}))
	ioctlReadIFrames  = ioc(iocRead, 'A', 0x51, unsafe.Sizeof(xferi{}))
)
