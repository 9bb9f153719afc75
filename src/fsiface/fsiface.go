// Package fsiface declares the "filesystem above the log" collaborator
// spec.md §6 lists as consumed from outside the core: namei/ilock/
// iunlockput/readi and the superblock fields the log needs
// (logstart/nlog). The inode layer, directory format, and syscalls
// built on top of it are all out of scope (spec.md §1) — only the
// narrow surface uexec needs is modeled here, plus one reference
// in-memory implementation (grounded in biscuit's hashtable, used the
// same way biscuit's own fs package indexes live inodes) so uexec is
// testable without a real on-disk inode layer.
package fsiface

import (
	"defs"
	"hashtable"
	"stat"
	"ustr"
)

// Superblock carries the on-disk layout facts wal.Init needs.
type Superblock struct {
	LogStart uint64
	NLog     uint64
}

// ModeRegular marks a stat.Stat_t as an ordinary file, the only kind
// uexec's loader will map.
const ModeRegular = 1

// Inode is an opaque handle to a located, possibly locked, file.
type Inode interface {
	// Size reports the file's length in bytes.
	Size() uint64
	// Stat reports the subset of metadata uexec's loader sanity-checks
	// before mapping the file's segments.
	Stat() stat.Stat_t
}

// FS is the filesystem-above-the-log collaborator.
type FS interface {
	// Namei resolves path to an inode, or returns ENOENT.
	Namei(path ustr.Ustr) (Inode, error)
	// Ilock locks ip for exclusive access.
	Ilock(ip Inode)
	// IunlockPut unlocks ip and releases the caller's reference.
	IunlockPut(ip Inode)
	// Readi copies up to n bytes from ip at off into dst, returning the
	// number of bytes actually read.
	Readi(ip Inode, dst []byte, off, n uint64) (uint64, error)
	// Superblock returns the mounted filesystem's superblock.
	Superblock() Superblock
}

// memInode is a reference Inode: an in-memory byte blob.
type memInode struct {
	data []byte
}

// Size implements Inode.
func (i *memInode) Size() uint64 { return uint64(len(i.data)) }

// Stat implements Inode.
func (i *memInode) Stat() stat.Stat_t {
	var st stat.Stat_t
	st.Wmode(ModeRegular)
	st.Wsize(uint(len(i.data)))
	return st
}

// MemFS is a reference FS backed entirely by an in-memory path->inode
// index, built with the same hashtable package biscuit uses to index
// live inodes by path.
type MemFS struct {
	sb    Superblock
	files *hashtable.Hashtable[*memInode]
}

// NewMemFS constructs an empty MemFS with the given superblock values.
func NewMemFS(sb Superblock) *MemFS {
	return &MemFS{sb: sb, files: hashtable.MkHash[*memInode](64)}
}

// PutFile seeds path with the given contents, for test setup.
func (fs *MemFS) PutFile(path string, contents []byte) {
	fs.files.Set(ustr.FromString(path), &memInode{data: contents})
}

// Namei implements FS.
func (fs *MemFS) Namei(path ustr.Ustr) (Inode, error) {
	v, ok := fs.files.Get(path)
	if !ok {
		return nil, defs.ENOENT
	}
	return v, nil
}

// Ilock implements FS: MemFS has no concurrent mutators, so locking is
// a no-op.
func (fs *MemFS) Ilock(ip Inode) {}

// IunlockPut implements FS.
func (fs *MemFS) IunlockPut(ip Inode) {}

// Readi implements FS.
func (fs *MemFS) Readi(ip0 Inode, dst []byte, off, n uint64) (uint64, error) {
	ip := ip0.(*memInode)
	if off >= uint64(len(ip.data)) {
		return 0, nil
	}
	end := off + n
	if end > uint64(len(ip.data)) {
		end = uint64(len(ip.data))
	}
	c := copy(dst, ip.data[off:end])
	return uint64(c), nil
}

// Superblock implements FS.
func (fs *MemFS) Superblock() Superblock { return fs.sb }
