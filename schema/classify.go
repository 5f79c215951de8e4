package schema

import "github.com/stevemurr/jsonsqlite/document"

// Type is the classification of a document value. Every Type except
// Composite is also the declared storage type of the column it creates.
type Type string

const (
	Boolean   Type = "BOOLEAN"
	Integer   Type = "INTEGER"
	Real      Type = "REAL"
	Text      Type = "TEXT"
	Composite Type = "COMPOSITE"
)

// IsScalar reports whether values of this type are stored in a column.
func (t Type) IsScalar() bool {
	return t != Composite
}

// Classify decides how a value is stored. Null is classified as text, so a
// column first seen holding null is declared TEXT.
func Classify(v document.Value) Type {
	switch v.Kind() {
	case document.Bool:
		return Boolean
	case document.Int:
		return Integer
	case document.Float:
		return Real
	case document.Object, document.Array:
		return Composite
	default:
		return Text
	}
}

// Decompose reports whether a composite value produces a child table and
// returns the object that represents the child's schema: the value itself
// for an object, the first element for an array of objects. Empty arrays and
// arrays whose first element is not an object produce nothing.
func Decompose(v document.Value) (document.Value, bool) {
	switch v.Kind() {
	case document.Object:
		return v, true
	case document.Array:
		items := v.Items()
		if len(items) > 0 && items[0].Kind() == document.Object {
			return items[0], true
		}
	}
	return document.Value{}, false
}
