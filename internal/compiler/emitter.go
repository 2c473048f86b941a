package compiler

import "github.com/sexpvm/sexpvm/internal/bytecode"

// emitter accumulates one function's instruction stream, backpatching
// jmp/jif labels once their target address is known (§4.5 "loops
// built on conditional+jump").
type emitter struct {
	code []uint32
}

func (e *emitter) pc() int64 { return int64(len(e.code)) }

func (e *emitter) emit(w uint32) int64 {
	e.code = append(e.code, w)
	return e.pc() - 1
}

func (e *emitter) emitAll(ws []uint32) {
	e.code = append(e.code, ws...)
}

// emitJmpPlaceholder emits a jmp/jif with a zero label and returns its
// index so the caller can patch it once the jump target is known.
func (e *emitter) emitJmpPlaceholder() int64 {
	return e.emit(bytecode.EncodeL(bytecode.OpJmp, 0))
}

func (e *emitter) emitJifPlaceholder(cond int8) int64 {
	return e.emit(bytecode.EncodeSL(bytecode.OpJif, cond, 0))
}

// patchJump rewrites the jump instruction at idx so it lands at the
// current pc (a relative offset from idx, matching how OpJmp/OpJif
// are interpreted: next = pc + label, where pc is the jump's own
// index).
func (e *emitter) patchJump(idx int64) {
	target := e.pc()
	rel := int16(target - idx)
	op := bytecode.Op(e.code[idx] & 0xff)
	slot := int8(byte(e.code[idx] >> 8))
	if op == bytecode.OpJmp {
		e.code[idx] = bytecode.EncodeL(bytecode.OpJmp, rel)
	} else {
		e.code[idx] = bytecode.EncodeSL(bytecode.OpJif, slot, rel)
	}
}
