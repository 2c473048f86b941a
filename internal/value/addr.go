package value

import "reflect"

// objAddr returns the identity address of an aggregate, used for
// identity comparisons (mutable aggregate ordering, hashing by
// identity). Every Obj implementation is a pointer type except cfunc,
// whose identity is the address of the wrapped Go function value.
func objAddr(o Obj) uintptr {
	if o == nil {
		return 0
	}
	if c, ok := o.(cfunc); ok {
		return reflect.ValueOf(c.fn).Pointer()
	}
	return reflect.ValueOf(o).Pointer()
}
