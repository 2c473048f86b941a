package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/sexpvm/sexpvm/internal/value"
)

// Writer encodes values onto an underlying byte stream, tracking
// already-written aggregates so repeated or cyclic references become
// backrefs (tag 216) instead of being re-encoded or recursing forever.
type Writer struct {
	w    io.Writer
	seen map[value.Obj]int
	next int
}

// NewWriter returns a Writer with an empty backref table.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, seen: make(map[value.Obj]int)}
}

func (w *Writer) writeByte(b byte) error {
	_, err := w.w.Write([]byte{b})
	return err
}

func (w *Writer) writeTag(t Tag) error {
	return w.writeByte(byte(t))
}

func (w *Writer) writeBytes(b []byte) error {
	_, err := w.w.Write(b)
	return err
}

func (w *Writer) writeUvarint(n uint64) error {
	var buf [binary.MaxVarintLen64]byte
	sz := binary.PutUvarint(buf[:], n)
	return w.writeBytes(buf[:sz])
}

func (w *Writer) writeU64(n uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], n)
	return w.writeBytes(buf[:])
}

// backref returns the index o was registered under and true if o has
// already been written once this stream, or registers o under the
// next index and returns (that index, false) otherwise. Mutable
// aggregates register before their contents are written, so one can
// reference itself; tuples and structs register after their contents,
// the order in which the Reader can build and register them.
func (w *Writer) backref(o value.Obj) (int, bool) {
	if idx, ok := w.seen[o]; ok {
		return idx, true
	}
	idx := w.next
	w.seen[o] = idx
	w.next++
	return idx, false
}

func (w *Writer) writeBackref(idx int) error {
	if err := w.writeTag(TagBackref); err != nil {
		return err
	}
	return w.writeUvarint(uint64(idx))
}

// WriteValue encodes v, the sole entry point external callers use.
func (w *Writer) WriteValue(v value.Value) error {
	switch v.Tag() {
	case value.TagNil:
		return w.writeTag(TagNil)
	case value.TagBool:
		if v.AsBool() {
			return w.writeTag(TagTrue)
		}
		return w.writeTag(TagFalse)
	case value.TagInt:
		return w.writeInt(v.AsInt())
	case value.TagReal:
		return w.writeReal(v.AsReal())
	case value.TagString:
		return w.writeStringLike(v.AsObj().(*value.String).Bytes, stringKindString)
	case value.TagSymbol:
		return w.writeStringLike(v.AsObj().(*value.Symbol).Bytes, stringKindSymbol)
	case value.TagBuffer:
		return w.writeBuffer(v.AsObj().(*value.Buffer))
	case value.TagArray:
		return w.writeArray(v.AsObj().(*value.Array))
	case value.TagTuple:
		return w.writeTuple(v.AsObj().(*value.Tuple))
	case value.TagTable:
		return w.writeTable(v.AsObj().(*value.Table))
	case value.TagStruct:
		return w.writeStruct(v.AsObj().(*value.StructVal))
	default:
		return fmt.Errorf("wire: %s values are not serializable (%s)", v.Tag(), noCodeValuesNote)
	}
}

const noCodeValuesNote = "threads, closures, and native/userdata values carry process-local state with no wire representation"

func (w *Writer) writeInt(n int64) error {
	if n >= -smallIntBias && n <= smallIntLimit-smallIntBias {
		return w.writeByte(byte(n + smallIntBias))
	}
	if err := w.writeTag(TagWideInt); err != nil {
		return err
	}
	return w.writeU64(uint64(n))
}

func (w *Writer) writeReal(f float64) error {
	if err := w.writeTag(TagDouble); err != nil {
		return err
	}
	return w.writeU64(math.Float64bits(f))
}

func (w *Writer) writeStringLike(b []byte, kind stringKind) error {
	if err := w.writeTag(TagString); err != nil {
		return err
	}
	if err := w.writeByte(byte(kind)); err != nil {
		return err
	}
	if err := w.writeUvarint(uint64(len(b))); err != nil {
		return err
	}
	return w.writeBytes(b)
}

func (w *Writer) writeBuffer(b *value.Buffer) error {
	if idx, seen := w.backref(b); seen {
		return w.writeBackref(idx)
	}
	if err := w.writeTag(TagBuffer); err != nil {
		return err
	}
	data := b.Bytes()
	if err := w.writeUvarint(uint64(len(data))); err != nil {
		return err
	}
	return w.writeBytes(data)
}

func (w *Writer) writeArray(a *value.Array) error {
	if idx, seen := w.backref(a); seen {
		return w.writeBackref(idx)
	}
	if err := w.writeTag(TagArray); err != nil {
		return err
	}
	if err := w.writeUvarint(uint64(a.Count)); err != nil {
		return err
	}
	for i := int64(0); i < a.Count; i++ {
		elem, _ := a.Get(i)
		if err := w.WriteValue(elem); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeTuple(t *value.Tuple) error {
	if idx, seen := w.seen[t]; seen {
		return w.writeBackref(idx)
	}
	if err := w.writeTag(TagTuple); err != nil {
		return err
	}
	if err := w.writeUvarint(uint64(len(t.Elems))); err != nil {
		return err
	}
	for _, e := range t.Elems {
		if err := w.WriteValue(e); err != nil {
			return err
		}
	}
	w.backref(t)
	return nil
}

func (w *Writer) writeTable(t *value.Table) error {
	if idx, seen := w.backref(t); seen {
		return w.writeBackref(idx)
	}
	if err := w.writeTag(TagTable); err != nil {
		return err
	}
	if err := w.writeByte(byte(tableKindTable)); err != nil {
		return err
	}
	if err := w.writeUvarint(uint64(t.Count)); err != nil {
		return err
	}
	var werr error
	t.Each(func(k, v value.Value) {
		if werr != nil {
			return
		}
		if err := w.WriteValue(k); err != nil {
			werr = err
			return
		}
		werr = w.WriteValue(v)
	})
	return werr
}

func (w *Writer) writeStruct(s *value.StructVal) error {
	if idx, seen := w.seen[s]; seen {
		return w.writeBackref(idx)
	}
	if err := w.writeTag(TagTable); err != nil {
		return err
	}
	if err := w.writeByte(byte(tableKindStruct)); err != nil {
		return err
	}
	pairs := s.Pairs()
	if err := w.writeUvarint(uint64(len(pairs))); err != nil {
		return err
	}
	for _, p := range pairs {
		if err := w.WriteValue(p.Key); err != nil {
			return err
		}
		if err := w.WriteValue(p.Val); err != nil {
			return err
		}
	}
	w.backref(s)
	return nil
}
