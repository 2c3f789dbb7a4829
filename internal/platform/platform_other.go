//go:build !unix

package platform

import "io/fs"

// FileID identifies a filesystem object across paths. Two paths with the
// same FileID are the same inode.
type FileID struct {
	Dev uint64
	Ino uint64
}

// FileOwner extracts UID and GID from file info. Not available on this
// platform.
func FileOwner(fs.FileInfo) (uid, gid int) {
	return 0, 0
}

// Identity returns the dev/inode pair for info and whether it was
// available. Not available on this platform.
func Identity(fs.FileInfo) (FileID, bool) {
	return FileID{}, false
}

// LinkCount returns the hard link count for info, or 1 if unavailable.
func LinkCount(fs.FileInfo) uint64 {
	return 1
}

// DeviceNumbers returns the major and minor numbers of a device node.
// Not available on this platform.
func DeviceNumbers(fs.FileInfo) (major, minor int64) {
	return 0, 0
}
