package lime

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"math"
	"strconv"
	"strings"
)

var ErrValueTooDeep = errors.New("value nesting is too deep")
var ErrInvalidData = errors.New("data is not a valid json object")

// MaxDepth caps how deeply arrays and objects may nest inside a single value.
const MaxDepth = 64

type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}

	return "unknown"
}

type M map[string]Value

// Value is an immutable record field. The zero value is null.
type Value struct {
	kind Kind
	b    bool
	n    int64
	f    float64
	s    string
	raw  []byte
	arr  []Value
	obj  map[string]Value
}

func Null() Value {
	return Value{kind: KindNull}
}

func Bool(v bool) Value {
	return Value{kind: KindBool, b: v}
}

func Int(v int64) Value {
	return Value{kind: KindInt, n: v}
}

func Float(v float64) Value {
	return Value{kind: KindFloat, f: v}
}

func String(v string) Value {
	return Value{kind: KindString, s: v}
}

func Bytes(v []byte) Value {
	cp := make([]byte, len(v))
	copy(cp, v)
	return Value{kind: KindBytes, raw: cp}
}

func Array(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, arr: cp}
}

func Object(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindObject, obj: cp}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.n, true
}

func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}

	cp := make([]byte, len(v.raw))
	copy(cp, v.raw)
	return cp, true
}

func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}

	cp := make([]Value, len(v.arr))
	copy(cp, v.arr)
	return cp, true
}

func (v Value) AsObject() (map[string]Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}

	cp := make(map[string]Value, len(v.obj))
	for k, item := range v.obj {
		cp[k] = item
	}
	return cp, true
}

// Equal reports deep structural equality. Values of different kinds are never
// equal, an Int never equals a Float.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}

	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.n == other.n
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindBytes:
		return bytes.Equal(v.raw, other.raw)
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, item := range v.obj {
			otherItem, ok := other.obj[k]
			if !ok || !item.Equal(otherItem) {
				return false
			}
		}
		return true
	}

	return false
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindInt:
		return strconv.AppendInt(nil, v.n, 10), nil
	case KindFloat:
		f := v.f
		if math.IsNaN(f) || math.IsInf(f, 0) {
			// no json representation exists for these
			f = 0
		}
		return json.Marshal(f)
	case KindString:
		return json.Marshal(v.s)
	case KindBytes:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.raw))
	case KindArray:
		return json.Marshal(v.arr)
	case KindObject:
		return json.Marshal(v.obj)
	}

	return nil, errors.Errorf("unsupported value kind %d", v.kind)
}

// ParseData converts a json object into a field map. Integer literals become
// Int values, all other numbers become Float. Json has no bytes form.
func ParseData(raw []byte) (M, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.Wrap(ErrInvalidData, "malformed json")
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, errors.Wrap(ErrInvalidData, "top level must be an object")
	}

	m := make(M)

	var ferr error
	root.ForEach(func(k, item gjson.Result) bool {
		v, err := valueFromResult(item, 1)
		if err != nil {
			ferr = errors.Wrapf(err, "field %s", k.String())
			return false
		}

		m[k.String()] = v
		return true
	})

	if ferr != nil {
		return nil, ferr
	}

	return m, nil
}

func valueFromResult(res gjson.Result, depth int) (Value, error) {
	if depth > MaxDepth {
		return Value{}, errors.Wrapf(ErrValueTooDeep, "nesting exceeds %d levels", MaxDepth)
	}

	switch res.Type {
	case gjson.Null:
		return Null(), nil
	case gjson.False:
		return Bool(false), nil
	case gjson.True:
		return Bool(true), nil
	case gjson.String:
		return String(res.Str), nil
	case gjson.Number:
		if !strings.ContainsAny(res.Raw, ".eE") {
			if n, err := strconv.ParseInt(res.Raw, 10, 64); err == nil {
				return Int(n), nil
			}
		}
		return Float(res.Num), nil
	}

	if res.IsArray() {
		elements := res.Array()
		items := make([]Value, 0, len(elements))
		for _, el := range elements {
			item, err := valueFromResult(el, depth+1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Value{kind: KindArray, arr: items}, nil
	}

	if res.IsObject() {
		fields := make(map[string]Value)
		var ferr error
		res.ForEach(func(k, el gjson.Result) bool {
			item, err := valueFromResult(el, depth+1)
			if err != nil {
				ferr = errors.Wrapf(err, "key %s", k.String())
				return false
			}

			fields[k.String()] = item
			return true
		})
		if ferr != nil {
			return Value{}, ferr
		}
		return Value{kind: KindObject, obj: fields}, nil
	}

	return Value{}, errors.Wrapf(ErrInvalidData, "unsupported json element %s", res.Raw)
}

func checkDepth(v Value, depth int) error {
	if depth > MaxDepth {
		return errors.Wrapf(ErrValueTooDeep, "nesting exceeds %d levels", MaxDepth)
	}

	switch v.kind {
	case KindArray:
		for i := range v.arr {
			if err := checkDepth(v.arr[i], depth+1); err != nil {
				return err
			}
		}
	case KindObject:
		for _, item := range v.obj {
			if err := checkDepth(item, depth+1); err != nil {
				return err
			}
		}
	}

	return nil
}

func (m M) validate() error {
	for name, v := range m {
		if err := checkDepth(v, 1); err != nil {
			return errors.Wrapf(err, "field %s", name)
		}
	}

	return nil
}
