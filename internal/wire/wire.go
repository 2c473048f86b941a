// Package wire implements the external serialization format named in
// §6: a one-byte tag prefix, values below 201 encoding small integers
// in [-100, 100] directly, and tags 201-216 for the remaining scalar
// and aggregate kinds. The format is an external collaborator the
// same way the parser is (§1): the core never calls into this package
// on its own, and the format's job here is only to round-trip values
// across Encode/Decode well enough for tests, not to persist running
// threads or code (§1 Non-goals: "persistence of running threads").
//
// Backrefs (tag 216) let the encoder dedup or break cycles in mutable
// aggregates: an array, buffer, or table is registered with the
// writer's backref table before its contents are written, so a later
// reference to the same object — including the object referencing
// itself — is written as a two-byte-or-so backref instead of being
// re-encoded or looping forever. Decode mirrors this by allocating the
// empty aggregate and registering it before populating it. Tuples and
// structs are registered on both sides only after their contents;
// strings and symbols are never registered.
package wire

import "fmt"

// Tag is the one-byte wire discriminant. Values 0-200 are reserved for
// inline small integers; this type's named constants start at 201.
type Tag byte

const (
	TagNil       Tag = 201
	TagTrue      Tag = 202
	TagFalse     Tag = 203
	TagDouble    Tag = 204
	TagString    Tag = 205
	TagBuffer    Tag = 206
	TagArray     Tag = 207
	TagTuple     Tag = 208
	TagThread    Tag = 209
	TagTable     Tag = 210
	TagFuncDef   Tag = 211
	TagFuncEnv   Tag = 212
	TagFunction  Tag = 213
	TagUserData  Tag = 214
	TagCFunction Tag = 215
	TagBackref   Tag = 216

	// TagWideInt extends the table past §6's 16 named tags. §6 only
	// specifies a wire shape for integers in [-100, 100]; round-tripping
	// an arbitrary int64 needs a tag of its own, so this package adds
	// one rather than silently truncating or refusing to encode it.
	TagWideInt Tag = 217
)

// smallIntBias and smallIntLimit describe the inline small-integer
// range: a byte value b in [0, 200] decodes to the integer b-100.
const (
	smallIntBias  = 100
	smallIntLimit = 200
)

func (t Tag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagTrue:
		return "true"
	case TagFalse:
		return "false"
	case TagDouble:
		return "double"
	case TagString:
		return "string"
	case TagBuffer:
		return "buffer"
	case TagArray:
		return "array"
	case TagTuple:
		return "tuple"
	case TagThread:
		return "thread"
	case TagTable:
		return "table"
	case TagFuncDef:
		return "funcdef"
	case TagFuncEnv:
		return "funcenv"
	case TagFunction:
		return "function"
	case TagUserData:
		return "userdata"
	case TagCFunction:
		return "cfunction"
	case TagBackref:
		return "backref"
	case TagWideInt:
		return "wideint"
	default:
		return fmt.Sprintf("wire.Tag(%d)", byte(t))
	}
}

// stringKind and tableKind are the post-tag discriminator bytes that
// split §6's single "string" and "table" tags across this value
// model's finer distinction between String/Symbol and Table/StructVal.
// §6's format predates that distinction (it names one tag for each
// pair), so Encode/Decode extend it the minimal way: one extra byte
// immediately after the tag, never a new top-level tag.
type stringKind byte

const (
	stringKindString stringKind = 0
	stringKindSymbol stringKind = 1
)

type tableKind byte

const (
	tableKindTable  tableKind = 0
	tableKindStruct tableKind = 1
)
