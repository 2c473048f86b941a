// Package heap implements the non-moving, two-colour mark-and-sweep
// collector described in §4.1: an allocator that registers every
// aggregate into a block list, a mark phase that blackens values
// reachable from the VM's roots, and a sweep phase that frees
// unreachable blocks with type-dispatched finalization.
package heap

import (
	"golang.org/x/sys/unix"

	"github.com/sexpvm/sexpvm/internal/value"
)

type block struct {
	obj   value.Obj
	tag   value.Tag
	black bool // matches Heap.currentBlack once reached this cycle
	size  int64
}

// RootSource supplies every GC root: the current thread, the module
// table, the registry, the top-level environment, the VM return slot,
// and any scratch value the VM currently holds while building a
// half-constructed immutable aggregate (§4.1 "Roots").
type RootSource interface {
	GCRoots(yield func(value.Value))
}

// Interner is the subset of *intern.Cache the collector needs: it
// removes a canonical immutable's entry once the immutable becomes
// unreachable (§4.2 "Invalidation": "Only the GC calls remove").
type Interner interface {
	Remove(value.Obj)
}

// Stats are the counters surfaced by the `gc-stats` CLI command.
type Stats struct {
	Cycles         int64
	BytesAllocated int64
	BytesReclaimed int64
	LiveBytes      int64
	LiveObjects    int64

	// MaxRSSKB is the process's peak resident set size after the most
	// recent cycle, read via getrusage the same way a long-running
	// embedder would track memory pressure outside the managed heap.
	MaxRSSKB int64
}

// Heap is the allocator and collector for one VM. It is not safe for
// concurrent use from multiple OS threads — per §5, the VM's
// cooperative scheduling model means no locking is required.
type Heap struct {
	intern Interner

	blocks       []*block // block list, in allocation order
	byObj        map[value.Obj]*block
	currentBlack bool

	bytesSinceGC   int64
	triggerBytes   int64
	maxHeapBytes   int64 // 0 = unbounded
	oomHandler     func(error)

	stats Stats
	warnings []string
}

// New creates a heap whose GC fires roughly every triggerBytes bytes
// of allocation. A zero triggerBytes disables the automatic trigger;
// callers must call Collect explicitly.
func New(intern Interner, triggerBytes int64) *Heap {
	return &Heap{
		intern:       intern,
		byObj:        make(map[value.Obj]*block),
		triggerBytes: triggerBytes,
	}
}

// SetMaxHeapBytes bounds total live bytes; exceeding it even after a
// collection invokes the OOM handler (or aborts, per §4.1 "Failure").
func (h *Heap) SetMaxHeapBytes(n int64) { h.maxHeapBytes = n }

// SetGCTrigger changes the byte-counter interval SafePoint checks
// against, letting an embedder (or the sexpvm CLI's --gc-trigger flag)
// retune collection frequency after construction.
func (h *Heap) SetGCTrigger(n int64) { h.triggerBytes = n }

// SetOOMHandler installs an embedder hook for allocator failure. With
// no handler installed, out-of-memory aborts the process, matching
// the core's documented behavior: "out-of-memory is an abort
// condition for the core; embedders may install a handler."
func (h *Heap) SetOOMHandler(fn func(error)) { h.oomHandler = fn }

func (h *Heap) Warnings() []string { return h.warnings }

func (h *Heap) warn(msg string) { h.warnings = append(h.warnings, msg) }

// Register links a freshly built aggregate into the block list. Every
// heap value must pass through Register exactly once, immediately
// after construction, before it becomes reachable from any root.
func (h *Heap) Register(o value.Obj, size int64) {
	b := &block{obj: o, tag: o.Tag(), black: !h.currentBlack, size: size}
	h.blocks = append(h.blocks, b)
	h.byObj[o] = b
	h.bytesSinceGC += size
	h.stats.BytesAllocated += size
	h.stats.LiveBytes += size
	h.stats.LiveObjects++
}

// SafePoint runs a collection if the allocation counter has crossed
// the trigger interval. The interpreter calls this between bytecode
// instructions and before any C-call allocation — the only two safe
// points defined by §4.1/§5.
func (h *Heap) SafePoint(roots RootSource) {
	if h.triggerBytes <= 0 || h.bytesSinceGC < h.triggerBytes {
		return
	}
	h.Collect(roots)
}

// Collect runs one full mark-sweep cycle unconditionally.
func (h *Heap) Collect(roots RootSource) Stats {
	h.mark(roots)
	h.sweep()
	h.currentBlack = !h.currentBlack
	h.bytesSinceGC = 0
	h.stats.Cycles++
	h.stats.MaxRSSKB = readMaxRSSKB()
	if h.maxHeapBytes > 0 && h.stats.LiveBytes > h.maxHeapBytes {
		err := errOutOfMemory{live: h.stats.LiveBytes, max: h.maxHeapBytes}
		if h.oomHandler != nil {
			h.oomHandler(err)
		} else {
			panic(err)
		}
	}
	return h.stats
}

func (h *Heap) Stats() Stats { return h.stats }

type errOutOfMemory struct {
	live, max int64
}

func (e errOutOfMemory) Error() string {
	return "sexpvm: heap exceeds configured maximum after collection"
}

// readMaxRSSKB surfaces process-wide memory pressure alongside the
// collector's own live-byte count, the way an embedder watching for
// OS-level memory pressure would, independent of what the managed
// heap itself tracks. Zero on platforms where getrusage fails.
func readMaxRSSKB() int64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return int64(ru.Maxrss)
}
