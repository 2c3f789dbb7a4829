//go:build unix

// Package platform extracts ownership, link-count, and device metadata
// from os.FileInfo on the platforms that expose it.
package platform

import (
	"io/fs"
	"syscall"
)

// FileID identifies a filesystem object across paths. Two paths with the
// same FileID are the same inode.
type FileID struct {
	Dev uint64
	Ino uint64
}

// FileOwner extracts UID and GID from file info.
func FileOwner(info fs.FileInfo) (uid, gid int) {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return int(stat.Uid), int(stat.Gid)
	}
	return 0, 0
}

// Identity returns the dev/inode pair for info and whether it was
// available.
func Identity(info fs.FileInfo) (FileID, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return FileID{}, false
	}
	return FileID{Dev: uint64(stat.Dev), Ino: uint64(stat.Ino)}, true
}

// LinkCount returns the hard link count for info, or 1 if unavailable.
func LinkCount(info fs.FileInfo) uint64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(stat.Nlink)
	}
	return 1
}

// DeviceNumbers returns the major and minor numbers of a character or
// block device node.
func DeviceNumbers(info fs.FileInfo) (major, minor int64) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0
	}
	rdev := uint64(stat.Rdev)
	// Linux dev_t layout; matches unix.Major/Minor.
	major = int64((rdev >> 8) & 0xfff)
	minor = int64((rdev & 0xff) | ((rdev >> 12) & 0xfffff00))
	return major, minor
}
