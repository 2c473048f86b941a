package heap

import "github.com/sexpvm/sexpvm/internal/value"

// sweep walks the block list, reclaiming every block not blackened
// during mark, dispatching on tag for cleanup before unlinking it
// (§4.1 "Sweep").
func (h *Heap) sweep() {
	survivors := h.blocks[:0]
	var reclaimed, liveBytes, liveObjects int64
	for _, b := range h.blocks {
		if b.black == h.currentBlack {
			survivors = append(survivors, b)
			liveBytes += b.size
			liveObjects++
			continue
		}
		h.finalize(b)
		delete(h.byObj, b.obj)
		reclaimed += b.size
	}
	h.blocks = survivors
	h.stats.BytesReclaimed += reclaimed
	h.stats.LiveBytes = liveBytes
	h.stats.LiveObjects = liveObjects
}

func (h *Heap) finalize(b *block) {
	switch obj := b.obj.(type) {
	case *value.String, *value.Symbol, *value.Tuple, *value.StructVal:
		if h.intern != nil {
			h.intern.Remove(obj)
		}
	case *value.Array:
		obj.Data = nil
	case *value.Buffer:
		obj.Data = nil
	case *value.Table:
		// No exported way to clear slots; letting Go's GC reclaim the
		// backing array once obj itself is unreachable is equivalent
		// to freeing the backing storage first.
	case *value.ThreadObj:
		obj.Stack = nil
	case *value.Function:
		obj.Envs = nil
	case *value.FuncEnvObj:
		if obj.Thread == nil {
			obj.Values = nil
		}
	case *value.FuncDefObj:
		obj.Literals = nil
		obj.Code = nil
		obj.Captures = nil
	case *value.UserData:
		if obj.Desc != nil && obj.Desc.Finalize != nil {
			obj.Desc.Finalize(obj.Payload)
		}
	}
}
