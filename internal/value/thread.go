package value

// ThreadStatus is the lifecycle state of a green thread (§3, §4.3).
type ThreadStatus uint8

const (
	Pending ThreadStatus = iota
	Alive
	Dead
	Error
)

func (s ThreadStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Alive:
		return "alive"
	case Dead:
		return "dead"
	case Error:
		return "error"
	default:
		return "status(?)"
	}
}

// ThreadObj is a green thread: a contiguous value stack partitioned
// into frames by frame headers (§3, §4.3). The frame/call machinery
// that interprets the stack lives in package frame; this type is the
// data the GC walks and the scheduler switches between.
type ThreadObj struct {
	Stack   []Value
	Count   int64 // current top of stack
	Status  ThreadStatus
	Parent  *ThreadObj
	RetSlot Value // holds the result/error after the thread finishes

	// CurFrameBase caches the stack offset of the currently executing
	// frame's header, so the frame package doesn't need to re-walk the
	// stack to find it. It is bookkeeping only: the frame-chain
	// invariant (§8 property 3) holds independent of this field,
	// reconstructible from the size fields each header stores.
	CurFrameBase int64
}

func (t *ThreadObj) Tag() Tag { return TagThread }

func NewThread(stackCap int64) *ThreadObj {
	return &ThreadObj{Stack: make([]Value, stackCap), Status: Pending}
}

// EnsureCapacity grows the stack so at least n more slots are available
// above Count, doubling like Array/Buffer.
func (t *ThreadObj) EnsureCapacity(n int64) {
	need := t.Count + n
	if need <= int64(len(t.Stack)) {
		return
	}
	newCap := int64(len(t.Stack)) * 2
	if newCap < need {
		newCap = need
	}
	nd := make([]Value, newCap)
	copy(nd, t.Stack[:t.Count])
	t.Stack = nd
}
