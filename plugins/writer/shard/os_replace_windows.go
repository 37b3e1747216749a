//go:build windows

package shard

import (
	"errors"
	"os"
	"syscall"
	"time"
	"unsafe"
)

const (
	movefileReplaceExisting = 0x1
	movefileWriteThrough    = 0x8

	errAccessDenied     = syscall.Errno(5)
	errSharingViolation = syscall.Errno(32)
)

var (
	modkernel32     = syscall.NewLazyDLL("kernel32.dll")
	procMoveFileExW = modkernel32.NewProc("MoveFileExW")
)

// replaceShard 以 MoveFileExW(REPLACE_EXISTING|WRITE_THROUGH) 覆盖同名分片。
// 旧分片可能正被下游（上传/校验工具）打开，共享冲突时短暂重试。
func replaceShard(tmpPath, dest string) error {
	from, err := syscall.UTF16PtrFromString(tmpPath)
	if err != nil {
		return &os.LinkError{Op: "replace", Old: tmpPath, New: dest, Err: err}
	}
	to, err := syscall.UTF16PtrFromString(dest)
	if err != nil {
		return &os.LinkError{Op: "replace", Old: tmpPath, New: dest, Err: err}
	}
	var last error
	for attempt := 0; attempt < 3; attempt++ {
		r1, _, e1 := procMoveFileExW.Call(
			uintptr(unsafe.Pointer(from)),
			uintptr(unsafe.Pointer(to)),
			uintptr(movefileReplaceExisting|movefileWriteThrough),
		)
		if r1 != 0 {
			return nil
		}
		last = e1
		if last == nil || last == syscall.Errno(0) {
			last = syscall.EINVAL
		}
		if !errors.Is(last, errAccessDenied) && !errors.Is(last, errSharingViolation) {
			break
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return &os.LinkError{Op: "replace", Old: tmpPath, New: dest, Err: last}
}

// Windows 无目录 fsync。
func syncShardDir(string) error { return nil }
