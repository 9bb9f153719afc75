// Package diskio declares the virtio disk collaborator (spec.md §6:
// virtio_disk_rw/virtio_disk_intr/virtio_disk_init) as a Disk
// interface, and provides a file-backed reference implementation
// grounded in ufs/driver.go's ahci_disk_t — updated from
// Seek+Read/Write to positioned golang.org/x/sys/unix Pread/Pwrite so
// concurrent callers never race on a shared file offset, the same
// problem ahci_disk_t's own Lock()/Unlock() around Seek worked around.
package diskio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"defs"
)

// BlockSize is the on-disk block size in bytes, matching the buffer
// cache's Buffer.Data size (spec.md's BSIZE).
const BlockSize = 4096

// Disk is the block device collaborator the buffer cache and log
// depend on. A real implementation issues the request to virtio and
// returns once the device interrupt signals completion; the reference
// implementation below performs the equivalent positioned I/O
// synchronously.
type Disk interface {
	// ReadBlock reads block bno into dst, which must be BlockSize bytes.
	ReadBlock(bno uint64, dst []byte) error
	// WriteBlock writes BlockSize bytes from src to block bno.
	WriteBlock(bno uint64, src []byte) error
}

// FileDisk is a Disk backed by a regular file, standing in for the
// virtio block device in tests — the same role ahci_disk_t plays for
// biscuit's test suite.
type FileDisk struct {
	f   *os.File
	dev uint
}

// OpenFileDisk opens (or creates) path as a FileDisk with room for at
// least nblocks blocks. minor distinguishes multiple raw disks the way
// biscuit's defs.Mkdev(defs.D_RAWDISK, minor) does.
func OpenFileDisk(path string, nblocks uint64, minor int) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("diskio: open %s: %w", path, err)
	}
	if err := f.Truncate(int64(nblocks) * BlockSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("diskio: truncate %s: %w", path, err)
	}
	return &FileDisk{f: f, dev: defs.Mkdev(defs.D_RAWDISK, minor)}, nil
}

// ReadBlock implements Disk using a positioned pread, so concurrent
// readers/writers on distinct blocks never contend on a shared offset.
func (d *FileDisk) ReadBlock(bno uint64, dst []byte) error {
	if len(dst) != BlockSize {
		return fmt.Errorf("diskio: read block %d: dst must be %d bytes, got %d", bno, BlockSize, len(dst))
	}
	n, err := unix.Pread(int(d.f.Fd()), dst, int64(bno)*BlockSize)
	if err != nil {
		return fmt.Errorf("diskio: pread block %d: %w", bno, err)
	}
	if n != BlockSize {
		return fmt.Errorf("diskio: short read on block %d: got %d bytes", bno, n)
	}
	return nil
}

// WriteBlock implements Disk using a positioned pwrite.
func (d *FileDisk) WriteBlock(bno uint64, src []byte) error {
	if len(src) != BlockSize {
		return fmt.Errorf("diskio: write block %d: src must be %d bytes, got %d", bno, BlockSize, len(src))
	}
	n, err := unix.Pwrite(int(d.f.Fd()), src, int64(bno)*BlockSize)
	if err != nil {
		return fmt.Errorf("diskio: pwrite block %d: %w", bno, err)
	}
	if n != BlockSize {
		return fmt.Errorf("diskio: short write on block %d: wrote %d bytes", bno, n)
	}
	return nil
}

// Sync flushes the file to stable storage, standing in for the
// virtio/AHCI flush command.
func (d *FileDisk) Sync() error {
	return d.f.Sync()
}

// Close releases the underlying file.
func (d *FileDisk) Close() error {
	return d.f.Close()
}

// Dev returns this disk's device identifier, encoded the way biscuit's
// raw disk special file is (defs.D_RAWDISK major, minor distinguishing
// multiple disks).
func (d *FileDisk) Dev() uint {
	return d.dev
}

// MemDisk is an in-memory Disk, used in tests that want to exercise
// the buffer cache/log without touching the filesystem.
type MemDisk struct {
	blocks map[uint64][]byte
}

// NewMemDisk constructs an empty in-memory disk; unwritten blocks read
// back as all zero.
func NewMemDisk() *MemDisk {
	return &MemDisk{blocks: make(map[uint64][]byte)}
}

// ReadBlock implements Disk.
func (d *MemDisk) ReadBlock(bno uint64, dst []byte) error {
	if len(dst) != BlockSize {
		return fmt.Errorf("diskio: read block %d: dst must be %d bytes, got %d", bno, BlockSize, len(dst))
	}
	if b, ok := d.blocks[bno]; ok {
		copy(dst, b)
	} else {
		for i := range dst {
			dst[i] = 0
		}
	}
	return nil
}

// WriteBlock implements Disk.
func (d *MemDisk) WriteBlock(bno uint64, src []byte) error {
	if len(src) != BlockSize {
		return fmt.Errorf("diskio: write block %d: src must be %d bytes, got %d", bno, BlockSize, len(src))
	}
	b := make([]byte, BlockSize)
	copy(b, src)
	d.blocks[bno] = b
	return nil
}
