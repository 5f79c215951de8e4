// Package document provides the parsed form of an input record.
//
// A record is a tree of Values. Every Value carries exactly one Kind from a
// closed set, so consumers switch over the kind instead of inspecting
// dynamic Go types.
package document

import "fmt"

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Int
	Float
	String
	Object
	Array
)

var kindNames = [...]string{
	Null:   "null",
	Bool:   "bool",
	Int:    "int",
	Float:  "float",
	String: "string",
	Object: "object",
	Array:  "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a single node of a parsed document. The zero Value is null.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	fields []Field
	items  []Value
}

// Field is one key/value pair of an object, in document order.
type Field struct {
	Key   string
	Value Value
}

func NewNull() Value { return Value{} }
func NewBool(b bool) Value { return Value{kind: Bool, b: b} }
func NewInt(i int64) Value { return Value{kind: Int, i: i} }
func NewFloat(f float64) Value { return Value{kind: Float, f: f} }
func NewString(s string) Value { return Value{kind: String, s: s} }
func NewArray(items ...Value) Value {
	return Value{kind: Array, items: items}
}

// NewObject builds an object from fields. A repeated key keeps the position
// of its first occurrence and the value of its last one.
func NewObject(fields ...Field) Value {
	out := make([]Field, 0, len(fields))
	index := make(map[string]int, len(fields))
	for _, f := range fields {
		if i, ok := index[f.Key]; ok {
			out[i].Value = f.Value
			continue
		}
		index[f.Key] = len(out)
		out = append(out, f)
	}
	return Value{kind: Object, fields: out}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) Bool() bool { return v.b }
func (v Value) Int() int64 { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Text() string { return v.s }

// Fields returns the fields of an object, or nil for any other kind.
func (v Value) Fields() []Field { return v.fields }

// Items returns the elements of an array, or nil for any other kind.
func (v Value) Items() []Value { return v.items }

// Get looks up a field of an object by its exact key.
func (v Value) Get(key string) (Value, bool) {
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// IsComposite reports whether v is an object or an array.
func (v Value) IsComposite() bool {
	return v.kind == Object || v.kind == Array
}

// Scalar returns the Go representation of a scalar value: nil, bool, int64,
// float64 or string. Composite values return nil.
func (v Value) Scalar() any {
	switch v.kind {
	case Bool:
		return v.b
	case Int:
		return v.i
	case Float:
		return v.f
	case String:
		return v.s
	default:
		return nil
	}
}
