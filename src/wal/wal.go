// Package wal is the write-ahead redo log (spec.md C7), grounded
// directly on original_source/kernel/log.c: a physical redo log over
// the buffer cache that makes one filesystem transaction's writes
// atomic with respect to a crash. The on-disk layout is a header block
// (n, block[0..LOGSIZE]) followed by that many body blocks, exactly as
// log.c describes.
package wal

import (
	"encoding/binary"
	"fmt"

	"bio"
	"hart"
	"sched"
	"spinlock"
	"stats"
)

// LOGSIZE bounds how many distinct blocks one transaction may touch —
// the in-memory header array's capacity.
const LOGSIZE = 30

// MAXOPBLOCKS is the maximum number of distinct blocks a single
// filesystem operation may log, used by begin_op's admission check to
// guarantee outstanding operations can never collectively overflow
// LOGSIZE.
const MAXOPBLOCKS = 10

// header is the on-disk/in-memory log header layout: n followed by
// LOGSIZE block numbers, little-endian int32s, matching log.c's
// struct logheader so the header block's bytes are self-describing.
type header struct {
	n     int32
	block [LOGSIZE]int32
}

func (h *header) encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(h.n))
	for i, b := range h.block {
		binary.LittleEndian.PutUint32(dst[4+4*i:8+4*i], uint32(b))
	}
}

func (h *header) decode(src []byte) {
	h.n = int32(binary.LittleEndian.Uint32(src[0:4]))
	for i := range h.block {
		h.block[i] = int32(binary.LittleEndian.Uint32(src[4+4*i : 8+4*i]))
	}
}

// Log is one device's write-ahead log state.
type Log struct {
	lock *spinlock.SpinLock

	start uint64 // first block of the log region (the header block)
	size  uint64 // number of blocks in the log region, including the header

	dev uint64

	outstanding int
	committing  bool

	lh header

	cache *bio.Cache

	// waitToken is the wait-channel begin_op/end_op park and wake on —
	// log.c sleeps/wakes on &log itself; any stable per-Log address
	// works equally well.
	waitToken byte

	Ncommit stats.Counter_t
}

// Init constructs a Log over [start, start+size) on dev, backed by
// cache, and immediately recovers any committed-but-not-installed
// transaction left by a prior crash (log.c's initlog). It fatals if
// size cannot hold even one operation's worth of blocks, mirroring the
// original's boot-time logheader-size sanity check.
func Init(h *hart.CPU, sc sched.Scheduler, p sched.ProcRef, cache *bio.Cache, dev, start, size uint64) *Log {
	if size < 1+MAXOPBLOCKS {
		panic(fmt.Sprintf("wal: log size %d cannot hold even one operation (needs >= %d)", size, 1+MAXOPBLOCKS))
	}
	l := &Log{
		lock:  spinlock.New("log"),
		start: start,
		size:  size,
		dev:   dev,
		cache: cache,
	}
	l.recoverFromLog(h, sc, p)
	return l
}

func (l *Log) token() sched.WaitChan {
	return &l.waitToken
}

func (l *Log) readHead(h *hart.CPU, sc sched.Scheduler, p sched.ProcRef) {
	b, err := l.cache.Bread(h, sc, p, l.dev, l.start)
	if err != nil {
		panic(fmt.Sprintf("wal: read_head: %v", err))
	}
	l.lh.decode(b.Data[:])
	l.cache.Brelse(h, sc, p, b)
}

func (l *Log) writeHead(h *hart.CPU, sc sched.Scheduler, p sched.ProcRef) {
	b, err := l.cache.Bread(h, sc, p, l.dev, l.start)
	if err != nil {
		panic(fmt.Sprintf("wal: write_head: %v", err))
	}
	l.lh.encode(b.Data[:])
	if err := l.cache.Bwrite(b); err != nil {
		panic(fmt.Sprintf("wal: write_head: %v", err))
	}
	l.cache.Brelse(h, sc, p, b)
}

// installTrans copies each logged block's body from the log region to
// its home location. recovering selects whether bunpin is skipped (no
// one pinned during recovery — log.c's install_trans(1) vs install_trans(0)).
func (l *Log) installTrans(h *hart.CPU, sc sched.Scheduler, p sched.ProcRef, recovering bool) {
	for tail := int32(0); tail < l.lh.n; tail++ {
		lbuf, err := l.cache.Bread(h, sc, p, l.dev, l.start+1+uint64(tail))
		if err != nil {
			panic(fmt.Sprintf("wal: install_trans: read log block: %v", err))
		}
		dbuf, err := l.cache.Bread(h, sc, p, l.dev, uint64(l.lh.block[tail]))
		if err != nil {
			panic(fmt.Sprintf("wal: install_trans: read home block: %v", err))
		}
		dbuf.Data = lbuf.Data
		if err := l.cache.Bwrite(dbuf); err != nil {
			panic(fmt.Sprintf("wal: install_trans: write home block: %v", err))
		}
		if !recovering {
			l.cache.Bunpin(h, dbuf)
		}
		l.cache.Brelse(h, sc, p, lbuf)
		l.cache.Brelse(h, sc, p, dbuf)
	}
}

func (l *Log) recoverFromLog(h *hart.CPU, sc sched.Scheduler, p sched.ProcRef) {
	l.readHead(h, sc, p)
	l.installTrans(h, sc, p, true)
	l.lh.n = 0
	l.writeHead(h, sc, p)
}

// BeginOp marks the start of a filesystem operation, blocking while a
// commit is in progress or while admitting this operation could
// overflow the log.
func (l *Log) BeginOp(h *hart.CPU, sc sched.Scheduler, p sched.ProcRef) {
	l.lock.Acquire(h)
	for {
		if l.committing {
			sc.Sleep(l.token(), lockAdapter{l.lock, h})
			continue
		}
		if int(l.lh.n)+(l.outstanding+1)*MAXOPBLOCKS > LOGSIZE {
			sc.Sleep(l.token(), lockAdapter{l.lock, h})
			continue
		}
		l.outstanding++
		l.lock.Release(h)
		return
	}
}

// LogWrite records b's block number in the current transaction,
// absorbing repeated writes to the same block into one log slot. The
// caller must hold b's sleep lock and have an open operation (BeginOp
// called, EndOp not yet).
func (l *Log) LogWrite(h *hart.CPU, b *bio.Buffer) {
	l.lock.Acquire(h)
	defer l.lock.Release(h)

	if l.outstanding < 1 {
		panic("wal: log_write outside of transaction")
	}
	if int(l.lh.n) >= LOGSIZE || int(l.lh.n) >= int(l.size)-1 {
		panic("wal: too big a transaction")
	}

	i := int32(0)
	for ; i < l.lh.n; i++ {
		if l.lh.block[i] == int32(b.Blockno) {
			break
		}
	}
	l.lh.block[i] = int32(b.Blockno)
	if i == l.lh.n {
		l.cache.Bpin(h, b)
		l.lh.n++
	}
}

// EndOp marks the end of a filesystem operation. If it was the last
// outstanding operation, it commits the transaction.
func (l *Log) EndOp(h *hart.CPU, sc sched.Scheduler, p sched.ProcRef) {
	l.lock.Acquire(h)
	l.outstanding--
	if l.committing {
		panic("wal: end_op: already committing")
	}
	doCommit := false
	if l.outstanding == 0 {
		doCommit = true
		l.committing = true
	} else {
		sc.Wakeup(l.token())
	}
	l.lock.Release(h)

	if doCommit {
		l.commit(h, sc, p)
		l.lock.Acquire(h)
		l.committing = false
		sc.Wakeup(l.token())
		l.lock.Release(h)
	}
}

// commit runs while l.committing is set, so no concurrent operation
// can be admitted: write bodies, write the header (the atomic commit
// point), install to home locations, then erase the transaction.
func (l *Log) commit(h *hart.CPU, sc sched.Scheduler, p sched.ProcRef) {
	if l.lh.n == 0 {
		return
	}
	l.writeLog(h, sc, p)
	l.writeHead(h, sc, p) // commit point
	l.Ncommit.Inc()
	l.installTrans(h, sc, p, false)
	l.lh.n = 0
	l.writeHead(h, sc, p) // erase the transaction
}

func (l *Log) writeLog(h *hart.CPU, sc sched.Scheduler, p sched.ProcRef) {
	for tail := int32(0); tail < l.lh.n; tail++ {
		to, err := l.cache.Bread(h, sc, p, l.dev, l.start+1+uint64(tail))
		if err != nil {
			panic(fmt.Sprintf("wal: write_log: read log block: %v", err))
		}
		from, err := l.cache.Bread(h, sc, p, l.dev, uint64(l.lh.block[tail]))
		if err != nil {
			panic(fmt.Sprintf("wal: write_log: read home block: %v", err))
		}
		to.Data = from.Data
		if err := l.cache.Bwrite(to); err != nil {
			panic(fmt.Sprintf("wal: write_log: write log block: %v", err))
		}
		l.cache.Brelse(h, sc, p, from)
		l.cache.Brelse(h, sc, p, to)
	}
}

// lockAdapter adapts (spinlock.SpinLock, hart.CPU) to sync.Locker for
// sched.Scheduler.Sleep, mirroring sleeplock's own adapter.
type lockAdapter struct {
	l *spinlock.SpinLock
	h *hart.CPU
}

func (a lockAdapter) Lock()   { a.l.Acquire(a.h) }
func (a lockAdapter) Unlock() { a.l.Release(a.h) }
