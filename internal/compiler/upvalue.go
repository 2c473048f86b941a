package compiler

import "github.com/sexpvm/sexpvm/internal/value"

// resolveUpvalue implements §4.5 "Upvalues": walking enclosing scopes
// for name, recording an env capture at the first function boundary
// crossed and forwarding it through any further boundaries so runtime
// lookup is always a single indirection (sc.fn.Envs[envIdx]). Returns
// the index into sc.fn's Captures/Envs, or false if name isn't bound
// in any enclosing function (the caller falls back to a global
// lookup).
func resolveUpvalue(sc *scope, name string) (int, bool) {
	if idx, ok := sc.fn.captureIdx[name]; ok {
		return idx, true
	}
	parent := sc.enclosingFn()
	if parent == nil {
		return 0, false
	}

	if varSlot, ok := parent.resolveLocal(name); ok {
		parent.fn.needsOwnEnv = true
		return addCapture(sc.fn, value.EnvCapture{FromFrame: true}, varSlot, name), true
	}

	if parentIdx, ok := resolveUpvalue(parent, name); ok {
		varSlot := parent.fn.captureVarSlot[parentIdx]
		return addCapture(sc.fn, value.EnvCapture{FromFrame: false, Slot: parentIdx}, varSlot, name), true
	}
	return 0, false
}

func addCapture(fn *fnScope, cap value.EnvCapture, varSlot int, name string) int {
	idx := len(fn.captures)
	fn.captures = append(fn.captures, cap)
	fn.captureVarSlot = append(fn.captureVarSlot, varSlot)
	fn.captureIdx[name] = idx
	return idx
}
