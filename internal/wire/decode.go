package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/sexpvm/sexpvm/internal/intern"
	"github.com/sexpvm/sexpvm/internal/value"
)

// Reader decodes a Writer-produced stream back into values, running
// every immutable aggregate it reconstructs through cache so decoded
// strings/symbols/tuples/structs obey the intern law (§4.2, §8
// property 1) the same as ones built by the compiler or interpreter.
type Reader struct {
	r     *bufio.Reader
	cache *intern.Cache
	seen  []value.Value
}

// NewReader returns a Reader that canonicalizes decoded immutable
// aggregates through cache. Passing the same VM's cache as the one
// live values were built with means a round-tripped value can compare
// equal, by pointer, to its pre-encode original.
func NewReader(r io.Reader, cache *intern.Cache) *Reader {
	return &Reader{r: bufio.NewReader(r), cache: cache}
}

func (r *Reader) readByte() (byte, error) {
	return r.r.ReadByte()
}

func (r *Reader) readUvarint() (uint64, error) {
	return binary.ReadUvarint(r.r)
}

func (r *Reader) readU64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (r *Reader) readBytes(n uint64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// register appends v to the backref table under the next index,
// mirroring Writer.backref's assignment order so the Nth aggregate
// written is the Nth aggregate a backref index refers to.
func (r *Reader) register(v value.Value) {
	r.seen = append(r.seen, v)
}

// ReadValue decodes one value, the sole entry point external callers
// use.
func (r *Reader) ReadValue() (value.Value, error) {
	b, err := r.readByte()
	if err != nil {
		return value.NilValue, err
	}
	if b <= smallIntLimit {
		return value.MakeInt(int64(b) - smallIntBias), nil
	}
	switch Tag(b) {
	case TagNil:
		return value.NilValue, nil
	case TagTrue:
		return value.MakeBool(true), nil
	case TagFalse:
		return value.MakeBool(false), nil
	case TagWideInt:
		n, err := r.readU64()
		if err != nil {
			return value.NilValue, err
		}
		return value.MakeInt(int64(n)), nil
	case TagDouble:
		n, err := r.readU64()
		if err != nil {
			return value.NilValue, err
		}
		return value.MakeReal(math.Float64frombits(n)), nil
	case TagString:
		return r.readStringLike()
	case TagBuffer:
		return r.readBuffer()
	case TagArray:
		return r.readArray()
	case TagTuple:
		return r.readTuple()
	case TagTable:
		return r.readTableLike()
	case TagBackref:
		idx, err := r.readUvarint()
		if err != nil {
			return value.NilValue, err
		}
		if idx >= uint64(len(r.seen)) {
			return value.NilValue, fmt.Errorf("wire: backref %d out of range (%d seen)", idx, len(r.seen))
		}
		return r.seen[idx], nil
	case TagThread, TagFuncDef, TagFuncEnv, TagFunction, TagUserData, TagCFunction:
		return value.NilValue, fmt.Errorf("wire: %s values are not deserializable (%s)", Tag(b), noCodeValuesNote)
	default:
		return value.NilValue, fmt.Errorf("wire: unrecognized tag byte %d", b)
	}
}

func (r *Reader) readStringLike() (value.Value, error) {
	kindByte, err := r.readByte()
	if err != nil {
		return value.NilValue, err
	}
	n, err := r.readUvarint()
	if err != nil {
		return value.NilValue, err
	}
	data, err := r.readBytes(n)
	if err != nil {
		return value.NilValue, err
	}
	var obj value.Obj
	switch stringKind(kindByte) {
	case stringKindString:
		obj = value.NewString(data)
	case stringKindSymbol:
		obj = value.NewSymbol(data)
	default:
		return value.NilValue, fmt.Errorf("wire: unrecognized string kind byte %d", kindByte)
	}
	canon, _ := r.cache.Add(obj)
	return value.Of(canon), nil
}

func (r *Reader) readBuffer() (value.Value, error) {
	n, err := r.readUvarint()
	if err != nil {
		return value.NilValue, err
	}
	data, err := r.readBytes(n)
	if err != nil {
		return value.NilValue, err
	}
	buf := value.NewBuffer(int64(n))
	buf.PushBytes(data)
	v := value.Of(buf)
	r.register(v)
	return v, nil
}

func (r *Reader) readArray() (value.Value, error) {
	n, err := r.readUvarint()
	if err != nil {
		return value.NilValue, err
	}
	arr := value.NewArray(int64(n))
	v := value.Of(arr)
	// Registered before elements are read so a self-referential array
	// (one of its own elements) resolves to this same object.
	r.register(v)
	for i := uint64(0); i < n; i++ {
		elem, err := r.ReadValue()
		if err != nil {
			return value.NilValue, err
		}
		arr.Push(elem)
	}
	return v, nil
}

func (r *Reader) readTuple() (value.Value, error) {
	n, err := r.readUvarint()
	if err != nil {
		return value.NilValue, err
	}
	elems := make([]value.Value, n)
	for i := range elems {
		elem, err := r.ReadValue()
		if err != nil {
			return value.NilValue, err
		}
		elems[i] = elem
	}
	obj := value.NewTuple(elems)
	canon, _ := r.cache.Add(obj)
	v := value.Of(canon)
	r.register(v)
	return v, nil
}

func (r *Reader) readTableLike() (value.Value, error) {
	kindByte, err := r.readByte()
	if err != nil {
		return value.NilValue, err
	}
	n, err := r.readUvarint()
	if err != nil {
		return value.NilValue, err
	}
	switch tableKind(kindByte) {
	case tableKindTable:
		tbl := value.NewTable(int64(n))
		v := value.Of(tbl)
		// Registered before entries for the same reason as arrays: a
		// table can store itself as a key or value.
		r.register(v)
		for i := uint64(0); i < n; i++ {
			k, err := r.ReadValue()
			if err != nil {
				return value.NilValue, err
			}
			val, err := r.ReadValue()
			if err != nil {
				return value.NilValue, err
			}
			tbl.Put(k, val)
		}
		return v, nil
	case tableKindStruct:
		pairs := make([]value.KV, n)
		for i := range pairs {
			k, err := r.ReadValue()
			if err != nil {
				return value.NilValue, err
			}
			val, err := r.ReadValue()
			if err != nil {
				return value.NilValue, err
			}
			pairs[i] = value.KV{Key: k, Val: val}
		}
		obj := value.NewStruct(pairs)
		canon, _ := r.cache.Add(obj)
		v := value.Of(canon)
		r.register(v)
		return v, nil
	default:
		return value.NilValue, fmt.Errorf("wire: unrecognized table kind byte %d", kindByte)
	}
}
