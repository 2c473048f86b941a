package interp

import (
	"fmt"
	"os"

	"github.com/sexpvm/sexpvm/internal/bytecode"
	"github.com/sexpvm/sexpvm/internal/frame"
	"github.com/sexpvm/sexpvm/internal/value"
	"github.com/sexpvm/sexpvm/internal/vmerr"
)

// dispatchSyscall implements the fixed syscall table named in §4.4:
// "print, asm, tuple, array, table, struct, get, put, …". Each reads
// its operands from the instruction's B and C slots (put also reads
// the value to store from A); the tuple and struct builders take
// their elements from an already-built array in B.
func dispatchSyscall(m VM, f frame.Frame, d bytecode.Decoded) (value.Value, error) {
	switch d.Syscall {
	case bytecode.SysPrint:
		v := f.Get(int64(d.B))
		fmt.Fprintln(os.Stdout, formatValue(v))
		return value.NilValue, nil

	case bytecode.SysAsm:
		// Inline assembly / FFI escape hatch: out of scope for the
		// managed core (§1 "Deliberately out of scope"); surfaced as a
		// runtime error rather than silently no-op'd.
		return value.NilValue, vmerr.Runtimef("asm syscall is not implemented by the managed core")

	case bytecode.SysTuple:
		elems := f.Get(int64(d.B)).AsObj().(*value.Array)
		tup := value.NewTuple(append([]value.Value(nil), elems.Data[:elems.Count]...))
		canon, installed := m.Intern().Add(tup)
		if installed {
			m.Heap().Register(canon, 16+elems.Count*8)
		}
		return value.Of(canon), nil

	case bytecode.SysArray:
		n := f.Get(int64(d.B)).AsInt()
		arr := value.NewArray(n)
		for i := int64(0); i < n; i++ {
			arr.Push(value.NilValue)
		}
		m.Heap().Register(arr, 32+n*8)
		return value.Of(arr), nil

	case bytecode.SysTable:
		tbl := value.NewTable(0)
		m.Heap().Register(tbl, 64)
		return value.Of(tbl), nil

	case bytecode.SysStruct:
		src := f.Get(int64(d.B)).AsObj().(*value.Array)
		pairs := make([]value.KV, 0, src.Count/2)
		for i := int64(0); i+1 < src.Count; i += 2 {
			k, _ := src.Get(i)
			v, _ := src.Get(i + 1)
			pairs = append(pairs, value.KV{Key: k, Val: v})
		}
		st := value.NewStruct(pairs)
		canon, installed := m.Intern().Add(st)
		if installed {
			m.Heap().Register(canon, 24+int64(len(pairs))*16)
		}
		return value.Of(canon), nil

	case bytecode.SysGet:
		return syscallGet(f.Get(int64(d.B)), f.Get(int64(d.C)))

	case bytecode.SysPut:
		return value.NilValue, syscallPut(f.Get(int64(d.B)), f.Get(int64(d.C)), f.Get(int64(d.A)))

	case bytecode.SysRaise:
		return value.NilValue, vmerr.Raise(f.Get(int64(d.B)))

	default:
		return value.NilValue, vmerr.Runtimef("unknown syscall %s", d.Syscall)
	}
}

func syscallGet(container, key value.Value) (value.Value, error) {
	switch obj := container.AsObj().(type) {
	case *value.Array:
		v, ok := obj.Get(key.AsInt())
		if !ok {
			return value.NilValue, vmerr.Runtimef("array index %d out of range", key.AsInt())
		}
		return v, nil
	case *value.Tuple:
		i := key.AsInt()
		if i < 0 || i >= int64(len(obj.Elems)) {
			return value.NilValue, vmerr.Runtimef("tuple index %d out of range", i)
		}
		return obj.Elems[i], nil
	case *value.Table:
		v, _ := obj.Get(key)
		return v, nil
	case *value.StructVal:
		v, _ := obj.Get(key)
		return v, nil
	case *value.Buffer:
		i := key.AsInt()
		if i < 0 || i >= obj.Count {
			return value.NilValue, vmerr.Runtimef("buffer index %d out of range", i)
		}
		return value.MakeInt(int64(obj.Data[i])), nil
	default:
		return value.NilValue, vmerr.Runtimef("get: value is not indexable")
	}
}

func syscallPut(container, key, val value.Value) error {
	switch obj := container.AsObj().(type) {
	case *value.Array:
		if !obj.Set(key.AsInt(), val) {
			return vmerr.Runtimef("array index %d out of range", key.AsInt())
		}
		return nil
	case *value.Table:
		obj.Put(key, val)
		return nil
	default:
		return vmerr.Runtimef("put: value is not mutably indexable")
	}
}

func formatValue(v value.Value) string {
	switch v.Tag() {
	case value.TagNil:
		return "nil"
	case value.TagBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case value.TagInt:
		return fmt.Sprintf("%d", v.AsInt())
	case value.TagReal:
		return fmt.Sprintf("%g", v.AsReal())
	case value.TagString:
		return string(v.AsObj().(*value.String).Bytes)
	case value.TagSymbol:
		return string(v.AsObj().(*value.Symbol).Bytes)
	default:
		return fmt.Sprintf("<%s>", v.Tag())
	}
}
