package interp

import (
	"math"

	"github.com/sexpvm/sexpvm/internal/bytecode"
	"github.com/sexpvm/sexpvm/internal/value"
	"github.com/sexpvm/sexpvm/internal/vmerr"
)

// arith implements §4.4 "Arithmetic promotion": integer op integer is
// integer, any real operand promotes the result to real. Integer
// division/modulo by zero raises; real division by zero follows IEEE
// semantics (inf/nan, no error).
func arith(op bytecode.Op, a, b value.Value) (value.Value, error) {
	if a.Tag() == value.TagInt && b.Tag() == value.TagInt {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case bytecode.OpAdd:
			return value.MakeInt(x + y), nil
		case bytecode.OpSub:
			return value.MakeInt(x - y), nil
		case bytecode.OpMul:
			return value.MakeInt(x * y), nil
		case bytecode.OpDiv:
			if y == 0 {
				return value.NilValue, vmerr.Runtimef("integer division by zero")
			}
			if x == math.MinInt64 && y == -1 {
				return value.NilValue, vmerr.Runtimef("integer overflow in division")
			}
			return value.MakeInt(x / y), nil
		case bytecode.OpMod:
			if y == 0 {
				return value.NilValue, vmerr.Runtimef("integer division by zero")
			}
			if x == math.MinInt64 && y == -1 {
				return value.NilValue, vmerr.Runtimef("integer overflow in division")
			}
			return value.MakeInt(x % y), nil
		}
	}

	fx, ok1 := asReal(a)
	fy, ok2 := asReal(b)
	if !ok1 || !ok2 {
		return value.NilValue, vmerr.Runtimef("arithmetic on non-numeric operand")
	}
	switch op {
	case bytecode.OpAdd:
		return value.MakeReal(fx + fy), nil
	case bytecode.OpSub:
		return value.MakeReal(fx - fy), nil
	case bytecode.OpMul:
		return value.MakeReal(fx * fy), nil
	case bytecode.OpDiv:
		return value.MakeReal(fx / fy), nil
	case bytecode.OpMod:
		return value.MakeReal(realMod(fx, fy)), nil
	default:
		return value.NilValue, vmerr.Runtimef("not an arithmetic opcode")
	}
}

func realMod(x, y float64) float64 {
	q := float64(int64(x / y))
	return x - q*y
}

func asReal(v value.Value) (float64, bool) {
	switch v.Tag() {
	case value.TagInt:
		return float64(v.AsInt()), true
	case value.TagReal:
		return v.AsReal(), true
	default:
		return 0, false
	}
}

// bitwise implements the integer-only bitwise group (§4.4).
func bitwise(op bytecode.Op, a, b value.Value) (value.Value, error) {
	if a.Tag() != value.TagInt || b.Tag() != value.TagInt {
		return value.NilValue, vmerr.Runtimef("bitwise operator requires integer operands")
	}
	x, y := a.AsInt(), b.AsInt()
	switch op {
	case bytecode.OpBand:
		return value.MakeInt(x & y), nil
	case bytecode.OpBor:
		return value.MakeInt(x | y), nil
	case bytecode.OpBxor:
		return value.MakeInt(x ^ y), nil
	case bytecode.OpShl:
		return value.MakeInt(x << uint(y&63)), nil
	case bytecode.OpShr:
		return value.MakeInt(int64(uint64(x) >> uint(y&63))), nil
	case bytecode.OpAshr:
		return value.MakeInt(x >> uint(y&63)), nil
	default:
		return value.NilValue, vmerr.Runtimef("not a bitwise opcode")
	}
}

// compareOp implements the eq/ne/lt/le/gt/ge group via value.Compare
// and value.Equal (§4.4 "Comparison", "Equality").
func compareOp(op bytecode.Op, a, b value.Value) value.Value {
	switch op {
	case bytecode.OpEq:
		return value.MakeBool(value.Equal(a, b))
	case bytecode.OpNe:
		return value.MakeBool(!value.Equal(a, b))
	}
	c := value.Compare(a, b)
	switch op {
	case bytecode.OpLt:
		return value.MakeBool(c < 0)
	case bytecode.OpLe:
		return value.MakeBool(c <= 0)
	case bytecode.OpGt:
		return value.MakeBool(c > 0)
	case bytecode.OpGe:
		return value.MakeBool(c >= 0)
	default:
		return value.MakeBool(false)
	}
}
