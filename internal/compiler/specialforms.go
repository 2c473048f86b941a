package compiler

import (
	"github.com/sexpvm/sexpvm/internal/bytecode"
	"github.com/sexpvm/sexpvm/internal/forms"
	"github.com/sexpvm/sexpvm/internal/value"
	"github.com/sexpvm/sexpvm/internal/vmerr"
)

// arithOps maps an operator symbol's surface spelling to the opcode
// it folds over (§4.4 "arith", "bitwise"). Both the conventional
// infix spelling and the opcode's own mnemonic are accepted, the way
// the compiler's other literal forms accept whatever spelling the
// external reader happened to produce.
var arithOps = map[string]bytecode.Op{
	"+": bytecode.OpAdd, "add": bytecode.OpAdd,
	"-": bytecode.OpSub, "sub": bytecode.OpSub,
	"*": bytecode.OpMul, "mul": bytecode.OpMul,
	"/": bytecode.OpDiv, "div": bytecode.OpDiv,
	"%": bytecode.OpMod, "mod": bytecode.OpMod,
	"band": bytecode.OpBand,
	"bor":  bytecode.OpBor,
	"bxor": bytecode.OpBxor,
	"shl":  bytecode.OpShl,
	"shr":  bytecode.OpShr,
	"ashr": bytecode.OpAshr,
}

// compareOps maps a comparison operator's surface spelling to its
// opcode (§4.4 "Comparison", "Equality").
var compareOps = map[string]bytecode.Op{
	"=": bytecode.OpEq, "eq": bytecode.OpEq,
	"!=": bytecode.OpNe, "ne": bytecode.OpNe,
	"<": bytecode.OpLt, "lt": bytecode.OpLt,
	"<=": bytecode.OpLe, "le": bytecode.OpLe,
	">": bytecode.OpGt, "gt": bytecode.OpGt,
	">=": bytecode.OpGe, "ge": bytecode.OpGe,
}

// compileTuple dispatches a tuple form to a macro expansion, a special
// form handler by its head symbol, an arithmetic/comparison operator,
// or compiles it as a function call (§4.5 "Special forms", "Macro
// expansion").
func (c *compilerState) compileTuple(sc *scope, e *emitter, f forms.Form, dest int8, tail bool) error {
	if len(f.Elems) == 0 {
		return vmerr.Compilef(f.String(), "empty call form")
	}
	if name, ok := f.Elems[0].IsSymbol(); ok {
		expanded, didExpand, err := c.expandMacro(f, name)
		if err != nil {
			return err
		}
		if didExpand {
			return c.compileExpr(sc, e, expanded, dest, tail)
		}
		switch name {
		case "def", "var":
			return c.compileDef(sc, e, f, dest)
		case "set!":
			return c.compileSet(sc, e, f, dest)
		case "if":
			return c.compileIf(sc, e, f, dest, tail)
		case "do":
			return c.compileDo(sc, e, f, dest, tail)
		case "fn":
			return c.compileFn(sc, e, f, dest)
		case "quote":
			return c.compileQuote(sc, e, f, dest)
		case "try":
			return c.compileTry(sc, e, f, dest, tail)
		case "raise":
			return c.compileRaise(sc, e, f, dest)
		case "defmacro":
			return c.compileDefmacro(sc, e, f, dest)
		}
		if op, ok := arithOps[name]; ok {
			return c.compileArith(sc, e, f, dest, op)
		}
		if op, ok := compareOps[name]; ok {
			return c.compileCompare(sc, e, f, dest, op)
		}
	}
	return c.compileCall(sc, e, f, dest, tail)
}

// expandMacro implements §4.5 "Macro expansion": if name is bound in
// the macro table, the macro is invoked through the VM with this
// form's argument forms — quoted, not evaluated, the same conversion
// `quote` uses — and its result is converted back into a form and
// recompiled. A macro's own expansion may itself begin with a macro
// call, so this loops up to maxMacroDepth before surfacing a
// compile error naming the offending form.
func (c *compilerState) expandMacro(f forms.Form, name string) (forms.Form, bool, error) {
	didExpand := false
	for depth := 0; ; depth++ {
		sym, found := c.host.Intern().LookupBytes(value.TagSymbol, []byte(name))
		if !found {
			return f, didExpand, nil
		}
		macroVal, found := c.host.Macros().Get(value.Of(sym))
		if !found {
			return f, didExpand, nil
		}
		macroFn, ok := macroVal.AsObj().(*value.Function)
		if !ok {
			return f, didExpand, nil
		}
		if depth >= maxMacroDepth {
			return f, didExpand, vmerr.Compilef(f.String(), "macro expansion exceeded depth %d", maxMacroDepth)
		}
		args := make([]value.Value, len(f.Elems)-1)
		for i, a := range f.Elems[1:] {
			v, err := c.formToValue(a)
			if err != nil {
				return f, didExpand, err
			}
			args[i] = v
		}
		result, err := c.host.Invoke(value.Of(macroFn), args)
		if err != nil {
			return f, didExpand, vmerr.Compilef(f.String(), "macro expansion failed: %v", err)
		}
		f = valueToForm(result)
		didExpand = true
		if f.Kind != forms.KindTuple || len(f.Elems) == 0 {
			return f, didExpand, nil
		}
		name, ok = f.Elems[0].IsSymbol()
		if !ok {
			return f, didExpand, nil
		}
	}
}

// valueToForm converts a macro's result value back into a form the
// compiler can walk — the inverse of formToValue — so an expansion can
// be recompiled like any other source form (§4.5 "Macro expansion").
func valueToForm(v value.Value) forms.Form {
	switch v.Tag() {
	case value.TagArray:
		arr := v.AsObj().(*value.Array)
		elems := make([]forms.Form, arr.Count)
		for i := int64(0); i < arr.Count; i++ {
			elem, _ := arr.Get(i)
			elems[i] = valueToForm(elem)
		}
		return forms.Array(elems, forms.Span{})
	case value.TagTuple:
		tup := v.AsObj().(*value.Tuple)
		elems := make([]forms.Form, len(tup.Elems))
		for i, elem := range tup.Elems {
			elems[i] = valueToForm(elem)
		}
		return forms.Tuple(elems, forms.Span{})
	case value.TagStruct:
		st := v.AsObj().(*value.StructVal)
		pairs := st.Pairs()
		out := make([]forms.Pair, len(pairs))
		for i, p := range pairs {
			out[i] = forms.Pair{Key: valueToForm(p.Key), Val: valueToForm(p.Val)}
		}
		return forms.Dict(out, forms.Span{})
	default:
		return forms.Atom(v, forms.Span{})
	}
}

// compileTry implements `(try body err-sym handler)` (§7 "Propagation
// policy"): body compiles as a zero-argument closure invoked through a
// protected call, one whose error slot (§4.3's header field, -1 on
// every ordinary call) names the local err-sym binds the raised value
// to. A jmp right after the call skips the handler on the success
// path; interp.unwindError lands a propagating error one instruction
// past that jmp instead, directly on the handler.
func (c *compilerState) compileTry(sc *scope, e *emitter, f forms.Form, dest int8, tail bool) error {
	if len(f.Elems) != 4 {
		return vmerr.Compilef(f.String(), "try requires a body, a handler symbol, and a handler expression")
	}
	errSym, ok := f.Elems[2].IsSymbol()
	if !ok {
		return vmerr.Compilef(f.String(), "try's second argument must be a symbol to bind the raised value")
	}

	childSc := newFnScope(sc)
	fe := &emitter{}
	resultSlot := childSc.declare("%result")
	if err := c.compileExpr(childSc, fe, f.Elems[1], int8(resultSlot), true); err != nil {
		return err
	}
	fe.emit(bytecode.EncodeS(bytecode.OpReturn, int8(resultSlot)))

	def := &value.FuncDefObj{
		Name:           "<try-body>",
		NumLocals:      childSc.fn.nextSlot,
		NeedsParentEnv: childSc.fn.needsOwnEnv,
		Literals:       childSc.fn.literals,
		Code:           fe.code,
		Captures:       childSc.fn.captures,
	}
	c.host.Heap().Register(def, 64+int64(len(def.Code))*4)

	idx := sc.addLiteral(value.Of(def))
	fnSlot := sc.declare("%try-fn")
	e.emit(bytecode.EncodeSC(bytecode.OpClosure, int8(fnSlot), uint16(idx)))

	errSlot := sc.declare(errSym)
	e.emit(bytecode.EncodeSSS(bytecode.OpCall, int8(fnSlot), dest, int8(errSlot)))
	sc.release(fnSlot)

	jmpEndIdx := e.emitJmpPlaceholder()
	if err := c.compileExpr(sc, e, f.Elems[3], dest, tail); err != nil {
		return err
	}
	e.patchJump(jmpEndIdx)
	return nil
}

// compileRaise implements `(raise v)`: v evaluates into a temp slot
// and is handed to the raise syscall, which always reports an error
// carrying it (vmerr.Raise) for loop's unwind logic to deliver to the
// nearest enclosing try, or, absent one, to the root caller (§7
// "explicit raise").
func (c *compilerState) compileRaise(sc *scope, e *emitter, f forms.Form, dest int8) error {
	if len(f.Elems) != 2 {
		return vmerr.Compilef(f.String(), "raise requires exactly 1 argument")
	}
	valSlot := sc.declare("%raise-val")
	if err := c.compileExpr(sc, e, f.Elems[1], int8(valSlot), false); err != nil {
		return err
	}
	e.emitAll(bytecode.EncodeSyscall(dest, bytecode.SysRaise, int8(valSlot), 0))
	sc.release(valSlot)
	return nil
}

// compileDefmacro implements `(defmacro name [params] body...)`
// (§4.5 "Macro expansion"). A macro's body compiles like a `fn`'s, but
// in a fresh, unnested scope — a macro runs at compile time, before
// any enclosing function's locals exist, so it cannot close over
// them — and the resulting Function is installed directly into the
// macro table rather than emitted as a runtime closure.
func (c *compilerState) compileDefmacro(sc *scope, e *emitter, f forms.Form, dest int8) error {
	if len(f.Elems) < 3 {
		return vmerr.Compilef(f.String(), "defmacro requires a name, a parameter vector, and a body")
	}
	name, ok := f.Elems[1].IsSymbol()
	if !ok {
		return vmerr.Compilef(f.String(), "defmacro target must be a symbol")
	}
	params := f.Elems[2]
	if params.Kind != forms.KindArray {
		return vmerr.Compilef(f.String(), "defmacro parameter list must be an array literal")
	}

	macroSc := newRootScope()
	arity := 0
	vararg := false
	for _, p := range params.Elems {
		pname, ok := p.IsSymbol()
		if !ok {
			return vmerr.Compilef(f.String(), "defmacro parameters must be symbols")
		}
		if pname == "&" {
			vararg = true
			continue
		}
		macroSc.declare(pname)
		if !vararg {
			arity++
		}
	}
	macroSc.fn.arity = arity
	macroSc.fn.vararg = vararg

	fe := &emitter{}
	resultSlot := macroSc.declare("%result")
	if err := c.compileBody(macroSc, fe, f.Elems[3:], int8(resultSlot), true); err != nil {
		return err
	}
	fe.emit(bytecode.EncodeS(bytecode.OpReturn, int8(resultSlot)))

	def := &value.FuncDefObj{
		Name:      name,
		Arity:     arity,
		NumLocals: macroSc.fn.nextSlot,
		Vararg:    vararg,
		Literals:  macroSc.fn.literals,
		Code:      fe.code,
	}
	c.host.Heap().Register(def, 64+int64(len(def.Code))*4)
	fn := &value.Function{Def: def}
	c.host.Heap().Register(fn, 16)

	sym, _ := c.host.Intern().Add(value.NewSymbol([]byte(name)))
	c.host.Macros().Put(value.Of(sym), value.Of(fn))

	e.emit(bytecode.EncodeS(bytecode.OpLdNil, dest))
	return nil
}

// compileArith implements the n-ary arithmetic/bitwise operators by
// left-folding `op` across the argument list into a temp accumulator
// (§4.4 "arith": int/int stays int, any real operand promotes the
// result to real). Two or more arguments are required; the interp
// opcode itself is strictly binary.
func (c *compilerState) compileArith(sc *scope, e *emitter, f forms.Form, dest int8, op bytecode.Op) error {
	args := f.Elems[1:]
	if len(args) < 2 {
		return vmerr.Compilef(f.String(), "%s requires at least 2 arguments", f.Elems[0].String())
	}
	acc := sc.declare("%arith-acc")
	if err := c.compileExpr(sc, e, args[0], int8(acc), false); err != nil {
		return err
	}
	for _, a := range args[1:] {
		rhs := sc.declare("%arith-rhs")
		if err := c.compileExpr(sc, e, a, int8(rhs), false); err != nil {
			return err
		}
		e.emit(bytecode.EncodeSSS(op, int8(acc), int8(acc), int8(rhs)))
		sc.release(rhs)
	}
	e.emit(bytecode.EncodeSS(bytecode.OpMove, dest, int8(acc)))
	sc.release(acc)
	return nil
}

// compileCompare implements the strictly-binary comparison operators
// (§4.4 "Comparison", "Equality").
func (c *compilerState) compileCompare(sc *scope, e *emitter, f forms.Form, dest int8, op bytecode.Op) error {
	if len(f.Elems) != 3 {
		return vmerr.Compilef(f.String(), "%s requires exactly 2 arguments", f.Elems[0].String())
	}
	lhs := sc.declare("%cmp-lhs")
	if err := c.compileExpr(sc, e, f.Elems[1], int8(lhs), false); err != nil {
		return err
	}
	rhs := sc.declare("%cmp-rhs")
	if err := c.compileExpr(sc, e, f.Elems[2], int8(rhs), false); err != nil {
		return err
	}
	e.emit(bytecode.EncodeSSS(op, dest, int8(lhs), int8(rhs)))
	sc.release(rhs)
	sc.release(lhs)
	return nil
}

// compileDef implements `(def name expr)` / `(var name expr)`: declare
// a fresh local slot for name and evaluate expr directly into it
// (§4.5 "Special forms": "definition (def/var)"). Bindings are always
// lexical; the embedding's top-level environment (§6) is consulted
// only for names compileSymbolRef can't resolve lexically.
func (c *compilerState) compileDef(sc *scope, e *emitter, f forms.Form, dest int8) error {
	if len(f.Elems) != 3 {
		return vmerr.Compilef(f.String(), "def/var requires exactly 2 arguments")
	}
	name, ok := f.Elems[1].IsSymbol()
	if !ok {
		return vmerr.Compilef(f.String(), "def/var target must be a symbol")
	}
	slot := sc.declare(name)
	if err := c.compileExpr(sc, e, f.Elems[2], int8(slot), false); err != nil {
		return err
	}
	e.emit(bytecode.EncodeS(bytecode.OpLdNil, dest))
	return nil
}

// compileSet implements `(set! name expr)`.
func (c *compilerState) compileSet(sc *scope, e *emitter, f forms.Form, dest int8) error {
	if len(f.Elems) != 3 {
		return vmerr.Compilef(f.String(), "set! requires exactly 2 arguments")
	}
	name, ok := f.Elems[1].IsSymbol()
	if !ok {
		return vmerr.Compilef(f.String(), "set! target must be a symbol")
	}
	if slot, ok := sc.resolveLocal(name); ok {
		if err := c.compileExpr(sc, e, f.Elems[2], int8(slot), false); err != nil {
			return err
		}
		e.emit(bytecode.EncodeS(bytecode.OpLdNil, dest))
		return nil
	}
	if envIdx, ok := resolveUpvalue(sc, name); ok {
		tmp := sc.declare("%set-tmp")
		defer sc.release(tmp)
		if err := c.compileExpr(sc, e, f.Elems[2], int8(tmp), false); err != nil {
			return err
		}
		varSlot := sc.fn.captureVarSlot[envIdx]
		e.emit(bytecode.EncodeSES(bytecode.OpStUpv, int8(tmp), uint8(envIdx), int8(varSlot)))
		e.emit(bytecode.EncodeS(bytecode.OpLdNil, dest))
		return nil
	}
	return vmerr.Compilef(f.String(), "set!: unknown local %q (globals are immutable from compiled code)", name)
}

// compileIf implements `(if cond then else?)` with tail position
// propagated to both branches (§4.5 "the branches of a conditional in
// tail position").
func (c *compilerState) compileIf(sc *scope, e *emitter, f forms.Form, dest int8, tail bool) error {
	if len(f.Elems) != 3 && len(f.Elems) != 4 {
		return vmerr.Compilef(f.String(), "if requires 2 or 3 arguments")
	}
	condSlot := sc.declare("%if-cond")
	defer sc.release(condSlot)
	if err := c.compileExpr(sc, e, f.Elems[1], int8(condSlot), false); err != nil {
		return err
	}
	jifIdx := e.emitJifPlaceholder(int8(condSlot))

	// else branch (falls through when cond is falsy)
	if len(f.Elems) == 4 {
		if err := c.compileExpr(sc, e, f.Elems[3], dest, tail); err != nil {
			return err
		}
	} else {
		e.emit(bytecode.EncodeS(bytecode.OpLdNil, dest))
	}
	jmpEndIdx := e.emitJmpPlaceholder()

	e.patchJump(jifIdx)
	if err := c.compileExpr(sc, e, f.Elems[2], dest, tail); err != nil {
		return err
	}
	e.patchJump(jmpEndIdx)
	return nil
}

// compileDo implements `(do e1 e2 ... en)`: evaluate in order, only
// the last expression in tail position (§4.5 "the last expression of
// a sequence in tail position").
func (c *compilerState) compileDo(sc *scope, e *emitter, f forms.Form, dest int8, tail bool) error {
	inner := newChildScope(sc)
	return c.compileBody(inner, e, f.Elems[1:], dest, tail)
}

// compileQuote implements `(quote form)`: the quoted form is
// converted to a Value and emitted as a literal (§4.5 "Literals").
func (c *compilerState) compileQuote(sc *scope, e *emitter, f forms.Form, dest int8) error {
	if len(f.Elems) != 2 {
		return vmerr.Compilef(f.String(), "quote requires exactly 1 argument")
	}
	v, err := c.formToValue(f.Elems[1])
	if err != nil {
		return err
	}
	idx := sc.addLiteral(v)
	e.emit(bytecode.EncodeSC(bytecode.OpLdConst, dest, uint16(idx)))
	return nil
}

// formToValue materializes a quoted form into a Value, interning the
// resulting tuple/struct aggregates the same way the runtime would
// (§4.2 "Creation").
func (c *compilerState) formToValue(f forms.Form) (value.Value, error) {
	switch f.Kind {
	case forms.KindAtom:
		return f.Atom, nil
	case forms.KindArray, forms.KindTuple:
		elems := make([]value.Value, len(f.Elems))
		for i, ef := range f.Elems {
			v, err := c.formToValue(ef)
			if err != nil {
				return value.NilValue, err
			}
			elems[i] = v
		}
		if f.Kind == forms.KindArray {
			arr := value.NewArray(int64(len(elems)))
			for _, v := range elems {
				arr.Push(v)
			}
			c.host.Heap().Register(arr, 32+int64(len(elems))*8)
			return value.Of(arr), nil
		}
		tup := value.NewTuple(elems)
		canon, installed := c.host.Intern().Add(tup)
		if installed {
			c.host.Heap().Register(canon, 16+int64(len(elems))*8)
		}
		return value.Of(canon), nil
	case forms.KindDict:
		pairs := make([]value.KV, len(f.Pairs))
		for i, p := range f.Pairs {
			k, err := c.formToValue(p.Key)
			if err != nil {
				return value.NilValue, err
			}
			v, err := c.formToValue(p.Val)
			if err != nil {
				return value.NilValue, err
			}
			pairs[i] = value.KV{Key: k, Val: v}
		}
		st := value.NewStruct(pairs)
		canon, installed := c.host.Intern().Add(st)
		if installed {
			c.host.Heap().Register(canon, 24+int64(len(pairs))*16)
		}
		return value.Of(canon), nil
	default:
		return value.NilValue, vmerr.Compilef(f.String(), "malformed quoted form")
	}
}

// compileArrayLiteral emits `(array e1 e2 ... en)`-shaped literal
// forms by allocating a fixed-size array (syscall array, §4.4) and
// filling it with syscall put, the same two steps the runtime uses to
// grow one at run time.
func (c *compilerState) compileArrayLiteral(sc *scope, e *emitter, f forms.Form, dest int8) error {
	return c.buildFlatArray(sc, e, f.Elems, dest)
}

// compileDictLiteral emits a struct literal: values are flattened to
// alternating key/value slots in an array, then canonicalized by
// syscall struct (§4.2 "Creation").
func (c *compilerState) compileDictLiteral(sc *scope, e *emitter, f forms.Form, dest int8) error {
	flat := make([]forms.Form, 0, len(f.Pairs)*2)
	for _, p := range f.Pairs {
		flat = append(flat, p.Key, p.Val)
	}
	arrSlot := sc.declare("%dict-flat")
	defer sc.release(arrSlot)
	if err := c.buildFlatArray(sc, e, flat, int8(arrSlot)); err != nil {
		return err
	}
	e.emitAll(bytecode.EncodeSyscall(dest, bytecode.SysStruct, int8(arrSlot), 0))
	return nil
}

// buildFlatArray allocates an array of len(elems) (syscall array takes
// the size as its B operand) and fills each slot with syscall put,
// matching how interp.dispatchSyscall implements SysArray/SysPut.
func (c *compilerState) buildFlatArray(sc *scope, e *emitter, elems []forms.Form, dest int8) error {
	sizeSlot := sc.declare("%arr-size")
	defer sc.release(sizeSlot)
	e.emit(bytecode.EncodeLdI16(int8(sizeSlot), int16(len(elems))))
	e.emitAll(bytecode.EncodeSyscall(dest, bytecode.SysArray, int8(sizeSlot), 0))

	for i, ef := range elems {
		valSlot := sc.declare("%arr-val")
		if err := c.compileExpr(sc, e, ef, int8(valSlot), false); err != nil {
			return err
		}
		keySlot := sc.declare("%arr-key")
		e.emit(bytecode.EncodeLdI16(int8(keySlot), int16(i)))
		e.emitAll(bytecode.EncodeSyscall(int8(valSlot), bytecode.SysPut, dest, int8(keySlot)))
		sc.release(valSlot)
		sc.release(keySlot)
	}
	return nil
}

// compileFn implements `(fn [p1 p2 ... & rest] body...)`: a fresh
// function scope is opened, parameters become its first slots in
// order (the vararg tail, marked by a bare `&`, lands at slot==arity
// per §4.3 "end_frame packs surplus slots starting at index arity
// into a tuple"), the body compiles as an implicit `do` in tail
// position, and the resulting FuncDefObj is stashed in the enclosing
// function's literal pool for the `closure` instruction to build a
// Function from at run time (§4.5 "closure (fn)").
func (c *compilerState) compileFn(sc *scope, e *emitter, f forms.Form, dest int8) error {
	if len(f.Elems) < 2 {
		return vmerr.Compilef(f.String(), "fn requires a parameter vector")
	}
	params := f.Elems[1]
	if params.Kind != forms.KindArray {
		return vmerr.Compilef(f.String(), "fn parameter list must be an array literal")
	}

	childSc := newFnScope(sc)
	arity := 0
	vararg := false
	for _, p := range params.Elems {
		name, ok := p.IsSymbol()
		if !ok {
			return vmerr.Compilef(f.String(), "fn parameters must be symbols")
		}
		if name == "&" {
			vararg = true
			continue
		}
		childSc.declare(name)
		if !vararg {
			arity++
		}
	}
	childSc.fn.arity = arity
	childSc.fn.vararg = vararg

	fe := &emitter{}
	resultSlot := childSc.declare("%result")
	if err := c.compileBody(childSc, fe, f.Elems[2:], int8(resultSlot), true); err != nil {
		return err
	}
	fe.emit(bytecode.EncodeS(bytecode.OpReturn, int8(resultSlot)))

	def := &value.FuncDefObj{
		Name:           "<fn>",
		Arity:          arity,
		NumLocals:      childSc.fn.nextSlot,
		Vararg:         vararg,
		NeedsParentEnv: childSc.fn.needsOwnEnv,
		Literals:       childSc.fn.literals,
		Code:           fe.code,
		Captures:       childSc.fn.captures,
	}
	c.host.Heap().Register(def, 64+int64(len(def.Code))*4)

	idx := sc.addLiteral(value.Of(def))
	e.emit(bytecode.EncodeSC(bytecode.OpClosure, dest, uint16(idx)))
	return nil
}

// compileBody compiles a sequence of forms (a function or `do` body),
// evaluating all but the last for effect and the last into dest,
// propagating tail to the last form only.
func (c *compilerState) compileBody(sc *scope, e *emitter, body []forms.Form, dest int8, tail bool) error {
	if len(body) == 0 {
		e.emit(bytecode.EncodeS(bytecode.OpLdNil, dest))
		return nil
	}
	for i, stmt := range body {
		isLast := i == len(body)-1
		d := dest
		if !isLast {
			tmp := sc.declare("%body-discard")
			d = int8(tmp)
		}
		if err := c.compileExpr(sc, e, stmt, d, isLast && tail); err != nil {
			return err
		}
	}
	return nil
}

// compileCall compiles an ordinary function call: the callee and its
// arguments each evaluate into a temporary slot, the arguments stage
// into pending via push1/push2/push3 (§4.4), and the call is emitted
// as `call` or, in tail position, `tail-call` (§4.3 "tail-call
// rewrite").
func (c *compilerState) compileCall(sc *scope, e *emitter, f forms.Form, dest int8, tail bool) error {
	calleeSlot := sc.declare("%call-fn")
	if err := c.compileExpr(sc, e, f.Elems[0], int8(calleeSlot), false); err != nil {
		return err
	}

	argSlots := make([]int8, len(f.Elems)-1)
	for i, a := range f.Elems[1:] {
		s := sc.declare("%call-arg")
		argSlots[i] = int8(s)
		if err := c.compileExpr(sc, e, a, int8(s), false); err != nil {
			return err
		}
	}

	for i := 0; i < len(argSlots); {
		switch remaining := len(argSlots) - i; {
		case remaining >= 3:
			e.emit(bytecode.EncodeSSS(bytecode.OpPush3, argSlots[i], argSlots[i+1], argSlots[i+2]))
			i += 3
		case remaining == 2:
			e.emit(bytecode.EncodeSS(bytecode.OpPush2, argSlots[i], argSlots[i+1]))
			i += 2
		default:
			e.emit(bytecode.EncodeS(bytecode.OpPush1, argSlots[i]))
			i++
		}
	}

	if tail {
		e.emit(bytecode.EncodeS(bytecode.OpTailCall, int8(calleeSlot)))
	} else {
		// -1: an ordinary call has no handler slot (§7); only a
		// compiled `try` sets one.
		e.emit(bytecode.EncodeSSS(bytecode.OpCall, int8(calleeSlot), dest, -1))
	}

	sc.release(calleeSlot)
	for _, s := range argSlots {
		sc.release(int(s))
	}
	return nil
}
