// Package uexec implements the ELF loader (spec.md C8): exec() loads a
// new program image into the calling process's address space, atomic
// with respect to failure partway through — a failed exec leaves the
// process's existing image untouched. Grounded directly on
// original_source/kernel/exec.c, translated from its pagetable/uvmalloc
// calls to the mmu.VM collaborator and from its namei/ilock/readi calls
// to the fsiface.FS collaborator, with program-header parsing done via
// the standard library's debug/elf (the same package the teacher's
// kernel/chentry.go already reaches for to manipulate this kernel's own
// ELF images).
package uexec

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"defs"
	"fsiface"
	"hart"
	"mmu"
	"sched"
	"trap"
	"ustr"
	"util"
	"wal"
)

// MAXARG bounds argv length, mirroring exec.c's ustack[MAXARG] fixed
// array: more arguments than this overflow the loader's scratch space
// before they'd ever overflow the user stack.
const MAXARG = 32

// Proc is exec's view of "the process being loaded into": the pieces
// original_source/kernel/proc.h's struct proc contributes to exec,
// threaded explicitly like trap.Proc rather than recovered via an
// implicit myproc().
type Proc struct {
	PT   mmu.PageTable
	Sz   uint64
	TF   *trap.TrapFrame
	Ref  sched.ProcRef
	Name string
}

// Exec loads the ELF executable at path into p's address space,
// replacing its current image on success. argv becomes the argument
// vector visible to the new image's main(argc, argv); argv[0] is
// conventionally the program name. On success p.PT, p.Sz, p.TF.Epc and
// p.TF.Sp are updated and the old page table is freed; on failure p is
// left exactly as it was before the call, matching exec.c's "bad:"
// path.
func Exec(h *hart.CPU, sc sched.Scheduler, p *Proc, vm mmu.VM, fs fsiface.FS, log *wal.Log, path string, argv []string) (int, error) {
	log.BeginOp(h, sc, p.Ref)

	ip, err := fs.Namei(ustr.FromString(path))
	if err != nil {
		log.EndOp(h, sc, p.Ref)
		return -1, err
	}
	fs.Ilock(ip)

	pt, sz, entry, err := loadImage(h, vm, fs, ip)
	fs.IunlockPut(ip)
	log.EndOp(h, sc, p.Ref)
	if err != nil {
		if pt != nil {
			vm.ProcFreePagetable(pt, sz)
		}
		return -1, err
	}

	oldpt, oldsz := p.PT, p.Sz

	sz, sp, err := setupStack(h, vm, pt, sz, argv)
	if err != nil {
		vm.ProcFreePagetable(pt, sz)
		return -1, err
	}

	// Commit to the new image: only after every allocation has
	// succeeded do we touch p itself, so a failed exec never leaves p
	// half-updated.
	p.TF.Epc = entry
	p.TF.Sp = sp
	p.TF.A1 = sp
	p.PT = pt
	p.Sz = sz
	p.Name = baseName(path)

	vm.ProcFreePagetable(oldpt, oldsz)

	return len(argv), nil
}

// loadImage reads the ELF header and PT_LOAD program headers from ip,
// builds a fresh page table, and maps every loadable segment into it,
// mirroring exec.c's main loop plus loadseg(). It returns the partially
// built page table even on error so the caller can free it (exec.c's
// "goto bad" with pagetable != 0 case).
func loadImage(h *hart.CPU, vm mmu.VM, fs fsiface.FS, ip fsiface.Inode) (mmu.PageTable, uint64, uint64, error) {
	if ip.Stat().Mode() != fsiface.ModeRegular {
		return nil, 0, 0, defs.EINVAL
	}

	var hdr [64]byte
	n, err := fs.Readi(ip, hdr[:], 0, uint64(len(hdr)))
	if err != nil {
		return nil, 0, 0, err
	}
	if n < uint64(len(hdr)) {
		return nil, 0, 0, defs.EINVAL
	}
	if hdr[0] != 0x7f || string(hdr[1:4]) != "ELF" {
		return nil, 0, 0, defs.EINVAL
	}

	ef, err := elf.NewFile(&sectionReader{fs: fs, ip: ip, size: ip.Size()})
	if err != nil {
		return nil, 0, 0, defs.EINVAL
	}

	pt, err := vm.ProcPagetable()
	if err != nil {
		return nil, 0, 0, err
	}

	var sz uint64
	for _, ph := range ef.Progs {
		if ph.Type != elf.PT_LOAD {
			continue
		}
		if ph.Memsz < ph.Filesz {
			return pt, sz, 0, defs.EINVAL
		}
		if ph.Vaddr+ph.Memsz < ph.Vaddr {
			return pt, sz, 0, defs.EINVAL
		}
		if ph.Vaddr%mmu.PGSIZE != 0 {
			return pt, sz, 0, defs.EINVAL
		}
		newsz, err := vm.UvmAlloc(h, pt, sz, ph.Vaddr+ph.Memsz, flags2perm(ph.Flags))
		if err != nil {
			return pt, sz, 0, err
		}
		sz = newsz
		if err := loadSeg(h, vm, fs, pt, ip, ph.Vaddr, uint64(ph.Off), ph.Filesz); err != nil {
			return pt, sz, 0, err
		}
	}

	return pt, sz, ef.Entry, nil
}

// loadSeg copies filesz bytes of segment data from ip at offset into
// pt's mapping at va, one page at a time, mirroring exec.c's loadseg().
// The memsz-filesz tail is left as the zero-filled frame UvmAlloc
// already produced.
func loadSeg(h *hart.CPU, vm mmu.VM, fs fsiface.FS, pt mmu.PageTable, ip fsiface.Inode, va, offset, filesz uint64) error {
	for i := uint64(0); i < filesz; i += mmu.PGSIZE {
		dst, err := vm.WalkAddr(pt, va+i)
		if err != nil {
			panic(fmt.Sprintf("uexec: loadseg: address should exist: %v", err))
		}
		n := filesz - i
		if n > mmu.PGSIZE {
			n = mmu.PGSIZE
		}
		if uint64(len(dst)) < n {
			n = uint64(len(dst))
		}
		got, err := fs.Readi(ip, dst[:n], offset+i, n)
		if err != nil {
			return err
		}
		if got != n {
			return defs.EINVAL
		}
	}
	return nil
}

// flags2perm translates an ELF program header's r/w/x flags to mmu.Perm,
// mirroring exec.c's flags2perm. The mapped segment is always user- and
// read-accessible; W and X follow the header.
func flags2perm(flags elf.ProgFlag) mmu.Perm {
	perm := mmu.PermR | mmu.PermU
	if flags&elf.PF_X != 0 {
		perm |= mmu.PermX
	}
	if flags&elf.PF_W != 0 {
		perm |= mmu.PermW
	}
	return perm
}

// setupStack allocates the two-page stack region (one guard page, one
// stack page) above sz, copies argv onto the new stack, and returns the
// new size and initial stack pointer. Mirrors exec.c's argument-pushing
// loop, including its 16-byte stack alignment and MAXARG/stack-overflow
// guards (spec.md §9's "E2BIG on guard-page overflow" supplement).
func setupStack(h *hart.CPU, vm mmu.VM, pt mmu.PageTable, sz uint64, argv []string) (uint64, uint64, error) {
	sz = util.Roundup(sz, uint64(mmu.PGSIZE))
	newsz, err := vm.UvmAlloc(h, pt, sz, sz+2*mmu.PGSIZE, mmu.PermW|mmu.PermR|mmu.PermU)
	if err != nil {
		return sz, 0, err
	}
	sz = newsz
	vm.UvmClear(pt, sz-2*mmu.PGSIZE)

	sp := sz
	stackbase := sp - mmu.PGSIZE

	if len(argv) > MAXARG {
		return sz, 0, defs.E2BIG
	}
	ustack := make([]uint64, len(argv)+1)
	for i, a := range argv {
		buf := append([]byte(a), 0)
		sp -= uint64(len(buf))
		sp -= sp % 16
		if sp < stackbase {
			return sz, 0, defs.E2BIG
		}
		if err := vm.CopyOut(pt, sp, buf); err != nil {
			return sz, 0, err
		}
		ustack[i] = sp
	}
	ustack[len(argv)] = 0

	argvBytes := make([]byte, 8*len(ustack))
	for i, v := range ustack {
		binary.LittleEndian.PutUint64(argvBytes[8*i:8*i+8], v)
	}
	sp -= uint64(len(argvBytes))
	sp -= sp % 16
	if sp < stackbase {
		return sz, 0, defs.E2BIG
	}
	if err := vm.CopyOut(pt, sp, argvBytes); err != nil {
		return sz, 0, err
	}

	return sz, sp, nil
}

func baseName(path string) string {
	last := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			last = i + 1
		}
	}
	return path[last:]
}

// sectionReader adapts fsiface.FS.Readi to the io.ReaderAt debug/elf
// needs to parse program headers, since the collaborator interface is
// offset-based (matching readi's own signature) rather than a stream.
type sectionReader struct {
	fs   fsiface.FS
	ip   fsiface.Inode
	size uint64
}

func (r *sectionReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || uint64(off) >= r.size {
		return 0, fmt.Errorf("uexec: read past end of file")
	}
	n, err := r.fs.Readi(r.ip, p, uint64(off), uint64(len(p)))
	if err != nil {
		return int(n), err
	}
	if n < uint64(len(p)) {
		return int(n), fmt.Errorf("uexec: short read")
	}
	return int(n), nil
}
