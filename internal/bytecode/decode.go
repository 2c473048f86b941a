package bytecode

// Decoded is a fully unpacked instruction: every operand field a
// shape might use, zeroed where the opcode doesn't use it. Width is
// the number of Code words this instruction occupies (1, except the
// wide-immediate loads and the two-word syscall).
type Decoded struct {
	Op      Op
	A, B, C int8
	Env     uint8
	Label   int16
	Const   uint16
	Mask    uint16
	Imm     int64 // sign-extended for ld-i16/ld-i32/ld-i64
	Bits    uint64
	Syscall Syscall
	Width   int
}

// Decode unpacks the instruction at code[pc], consulting code[pc+1:]
// for any wide immediate. It panics on a truncated wide-immediate
// instruction or an opcode outside the known set, mirroring
// arch.Architecture's fixed-width decode helpers, which panic on a
// buffer of the wrong size rather than silently misreading memory.
func Decode(code Code, pc int64) Decoded {
	w := code[pc]
	op := opOf(w)
	if !op.Valid() {
		panic("bytecode: unknown opcode")
	}
	d := Decoded{Op: op, Width: 1}

	switch op {
	case OpLdNil, OpLdFalse, OpLdTrue, OpReturn, OpReturnNil:
		d.A = int8(b1Of(w))
	case OpLdI16:
		d.A = int8(b1Of(w))
		d.Imm = int64(s16At(w))
	case OpLdI32:
		requireWidth(code, pc, 2)
		d.A = int8(b1Of(w))
		d.Imm = int64(int32(code[pc+1]))
		d.Width = 2
	case OpLdI64:
		requireWidth(code, pc, 3)
		d.A = int8(b1Of(w))
		d.Imm = int64(code[pc+1]) | int64(code[pc+2])<<32
		d.Width = 3
	case OpLdF64:
		requireWidth(code, pc, 3)
		d.A = int8(b1Of(w))
		d.Bits = uint64(code[pc+1]) | uint64(code[pc+2])<<32
		d.Width = 3
	case OpLdConst:
		d.A = int8(b1Of(w))
		d.Const = uint16(s16At(w))
	case OpMove, OpSwap:
		d.A = int8(b1Of(w))
		d.B = int8(b2Of(w))
	case OpLdUpv, OpStUpv:
		d.A = int8(b1Of(w))
		d.Env = b2Of(w)
		d.C = int8(b3Of(w))
	case OpJmp:
		d.Label = s16At(w)
	case OpJif:
		d.A = int8(b1Of(w))
		d.Label = s16At(w)
	case OpAdd, OpSub, OpMul, OpDiv, OpMod,
		OpBand, OpBor, OpBxor, OpShl, OpShr, OpAshr,
		OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		d.A = int8(b1Of(w))
		d.B = int8(b2Of(w))
		d.C = int8(b3Of(w))
	case OpTypecheck:
		d.A = int8(b1Of(w))
		d.Mask = uint16(s16At(w))
	case OpPush1, OpPush2, OpPush3, OpPushArray:
		d.A = int8(b1Of(w))
		d.B = int8(b2Of(w))
		d.C = int8(b3Of(w))
	case OpCall:
		// A: callee slot, B: destination for a normal return, C: the
		// caller's handler slot for a raised error, or -1 if this call
		// isn't protected by a try (§4.3 "errorSlot", §7).
		d.A = int8(b1Of(w))
		d.B = int8(b2Of(w))
		d.C = int8(b3Of(w))
	case OpTailCall:
		d.A = int8(b1Of(w))
	case OpClosure:
		d.A = int8(b1Of(w))
		d.Const = uint16(s16At(w))
	case OpTransfer:
		d.A = int8(b1Of(w))
		d.B = int8(b2Of(w))
		d.C = int8(b3Of(w))
	case OpSyscall:
		// dest, tag, and a first operand slot fit word 1; a second
		// operand slot (needed by get/put, which take a container and
		// a key) spills into word 2, the same way a wide immediate
		// does.
		d.A = int8(b1Of(w))
		d.Syscall = Syscall(b2Of(w))
		d.B = int8(b3Of(w))
		requireWidth(code, pc, 2)
		d.C = int8(b1Of(code[pc+1]))
		d.Width = 2
	}
	return d
}

func requireWidth(code Code, pc int64, width int) {
	if pc+int64(width) > int64(len(code)) {
		panic("bytecode: truncated wide-immediate instruction")
	}
}
