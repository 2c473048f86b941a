// Package vm ties together the allocator, intern cache, compiler and
// interpreter into the embeddable core described by §6: value
// wrap/unwrap, Compile, Run, the C-function protocol, and userdata
// registration. Its shape follows internal/gocore.Process: one struct
// holding every piece of shared state, constructed once and then
// queried/driven by method calls.
package vm

import (
	"github.com/sexpvm/sexpvm/internal/heap"
	"github.com/sexpvm/sexpvm/internal/intern"
	"github.com/sexpvm/sexpvm/internal/value"
	"github.com/sexpvm/sexpvm/internal/vmerr"
)

// DefaultStackSize is the initial capacity, in value slots, given to
// every new green thread.
const DefaultStackSize = 256

// DefaultGCTrigger is the default byte-counter interval between GC
// safe-point checks (§4.1 "Trigger").
const DefaultGCTrigger = 1 << 20

// VM is the embeddable core: allocator, intern cache, module table,
// registry, root thread, and the scratch roots the collector must see
// while an immutable aggregate is half-built.
type VM struct {
	heap   *heap.Heap
	intern *intern.Cache

	modules  *value.Table // name -> module table, a root (§4.1 "Roots")
	registry *value.Table // embedder-defined root, a root (§4.1 "Roots")
	globals  *value.Table // top-level environment, a root (§4.1 "Roots")
	macros   *value.Table // symbol -> macro function, installed by defmacro (§4.5)

	root    *value.ThreadObj
	current *value.ThreadObj

	retSlot value.Value // VM return slot (§4.1 "Roots")
	scratch []value.Value

	gensymCounter uint64
	recursDepth   int
	recursLimit   int
}

// New constructs a VM with fresh module/registry/global tables and a
// root thread in the pending state.
func New() *VM {
	ic := intern.New()
	h := heap.New(ic, DefaultGCTrigger)

	v := &VM{
		heap:        h,
		intern:      ic,
		modules:     value.NewTable(0),
		registry:    value.NewTable(0),
		globals:     value.NewTable(0),
		macros:      value.NewTable(0),
		recursLimit: 1024,
	}
	h.Register(v.modules, 64)
	h.Register(v.registry, 64)
	h.Register(v.globals, 64)
	h.Register(v.macros, 64)

	v.root = value.NewThread(DefaultStackSize)
	h.Register(v.root, 64+DefaultStackSize*16)
	v.current = v.root
	return v
}

// Heap returns the VM's allocator/collector.
func (v *VM) Heap() *heap.Heap { return v.heap }

// Intern returns the VM's intern cache for immutable aggregates.
func (v *VM) Intern() *intern.Cache { return v.intern }

// Modules returns the module table, a GC root.
func (v *VM) Modules() *value.Table { return v.modules }

// Registry returns the embedder-defined registry table, a GC root.
func (v *VM) Registry() *value.Table { return v.registry }

// Globals returns the top-level environment table, a GC root.
func (v *VM) Globals() *value.Table { return v.globals }

// Macros returns the symbol -> macro-function table defmacro installs
// into and the compiler's macro expansion consults (§4.5 "Macro
// expansion"), a GC root.
func (v *VM) Macros() *value.Table { return v.macros }

// CurrentThread returns the thread the interpreter is (or will be)
// executing, used for transfer and for GC rooting.
func (v *VM) CurrentThread() *value.ThreadObj { return v.current }

func (v *VM) SetCurrentThread(th *value.ThreadObj) { v.current = th }

// RootThread returns the VM's initial thread, created at construction.
func (v *VM) RootThread() *value.ThreadObj { return v.root }

// NewThread allocates and registers a fresh green thread with the
// given parent, used by the `transfer` machinery and by embedders
// spawning concurrent green threads.
func (v *VM) NewThread(parent *value.ThreadObj) *value.ThreadObj {
	th := value.NewThread(DefaultStackSize)
	th.Parent = parent
	v.heap.Register(th, 64+DefaultStackSize*16)
	return th
}

// PushScratch registers a half-built immutable aggregate as a root
// until it is installed (interned) or discarded (§4.1 "Roots": "any
// scratch pointer the VM currently holds for half-built immutables",
// §5 "Scoped acquisition").
func (v *VM) PushScratch(o value.Obj) {
	v.scratch = append(v.scratch, value.Of(o))
}

// PopScratch removes the most recently pushed scratch root, called
// once the aggregate has been installed via the intern cache or the
// heap.
func (v *VM) PopScratch() {
	if len(v.scratch) > 0 {
		v.scratch = v.scratch[:len(v.scratch)-1]
	}
}

// ReturnSlot returns the VM's return slot, populated once the root
// thread finishes (§3 "thread... status transitions to dead on normal
// return or error on uncaught propagation... the VM's return slot
// holds the error").
func (v *VM) ReturnSlot() value.Value { return v.retSlot }

func (v *VM) SetReturnSlot(val value.Value) { v.retSlot = val }

// Gensym produces a symbol with the given prefix that was not in the
// intern cache before, installs it there, and returns it (§4.2
// "Unique-symbol generation").
func (v *VM) Gensym(prefix string) *value.Symbol {
	return v.intern.Gensym(prefix, &v.gensymCounter)
}

// EnterRecursion and ExitRecursion implement the recursion guard
// capping nested VM invocations from C calls (§4.4 "Dispatch").
func (v *VM) EnterRecursion() error {
	v.recursDepth++
	if v.recursDepth > v.recursLimit {
		v.recursDepth--
		return vmerr.Runtimef("recursion limit exceeded")
	}
	return nil
}

func (v *VM) ExitRecursion() { v.recursDepth-- }

// GCRoots implements heap.RootSource, enumerating every root named in
// §4.1: the current thread, module table, registry, top-level
// environment, VM return slot, and any live scratch pointers.
func (v *VM) GCRoots(yield func(value.Value)) {
	yield(value.Of(v.current))
	if v.current != v.root {
		yield(value.Of(v.root))
	}
	yield(value.Of(v.modules))
	yield(value.Of(v.registry))
	yield(value.Of(v.globals))
	yield(value.Of(v.macros))
	if !v.retSlot.IsNil() {
		yield(v.retSlot)
	}
	for _, s := range v.scratch {
		yield(s)
	}
}

// SafePoint runs a GC check if the allocation budget has been
// exceeded (§4.1 "Trigger", §5 "Suspension points").
func (v *VM) SafePoint() {
	v.heap.SafePoint(v)
}

// Collect forces an immediate GC cycle, returning its stats.
func (v *VM) Collect() heap.Stats {
	return v.heap.Collect(v)
}
