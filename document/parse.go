package document

import (
	"errors"
	"fmt"

	"github.com/valyala/fastjson"
)

// ErrNotArray is returned by ParseArray when the input is valid JSON but its
// top-level value is not an array.
var ErrNotArray = errors.New("expected a top-level array")

// Parser converts JSON text into Values. A Parser may be reused but is not
// safe for concurrent use.
type Parser struct {
	p fastjson.Parser
}

// Parse parses one JSON document.
func (p *Parser) Parse(data []byte) (Value, error) {
	v, err := p.p.ParseBytes(data)
	if err != nil {
		return Value{}, err
	}
	return convert(v)
}

// ParseArray parses a JSON document whose top-level value is an array and
// returns its elements in order.
func (p *Parser) ParseArray(data []byte) ([]Value, error) {
	v, err := p.p.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	if v.Type() != fastjson.TypeArray {
		return nil, fmt.Errorf("%w, got %s", ErrNotArray, v.Type())
	}
	elems, err := v.Array()
	if err != nil {
		return nil, err
	}
	out := make([]Value, 0, len(elems))
	for _, elem := range elems {
		item, err := convert(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Parse parses one JSON document with a throwaway Parser.
func Parse(data []byte) (Value, error) {
	var p Parser
	return p.Parse(data)
}

// convert copies a fastjson tree into a Value. The fastjson tree is only
// valid until the next parse, so nothing from it is retained.
func convert(v *fastjson.Value) (Value, error) {
	switch v.Type() {
	case fastjson.TypeNull:
		return NewNull(), nil
	case fastjson.TypeTrue:
		return NewBool(true), nil
	case fastjson.TypeFalse:
		return NewBool(false), nil
	case fastjson.TypeNumber:
		if i, err := v.Int64(); err == nil {
			return NewInt(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return Value{}, err
		}
		return NewFloat(f), nil
	case fastjson.TypeString:
		b, err := v.StringBytes()
		if err != nil {
			return Value{}, err
		}
		return NewString(string(b)), nil
	case fastjson.TypeArray:
		elems, err := v.Array()
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, 0, len(elems))
		for _, elem := range elems {
			item, err := convert(elem)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return NewArray(items...), nil
	case fastjson.TypeObject:
		obj, err := v.Object()
		if err != nil {
			return Value{}, err
		}
		fields := make([]Field, 0, obj.Len())
		var convErr error
		obj.Visit(func(key []byte, fv *fastjson.Value) {
			if convErr != nil {
				return
			}
			item, err := convert(fv)
			if err != nil {
				convErr = err
				return
			}
			fields = append(fields, Field{Key: string(key), Value: item})
		})
		if convErr != nil {
			return Value{}, convErr
		}
		return NewObject(fields...), nil
	default:
		return Value{}, fmt.Errorf("unsupported JSON type %s", v.Type())
	}
}
