// Package value implements the dynamic value shape shared by the
// code-fragment compiler and the evaluator: None, a scalar string, or a
// list of values.
package value

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind is a Value's variant tag. The VarScope type= attribute uses
// Classify, not Kind.
type Kind int

const (
	// KindNone is an unset/absent value.
	KindNone Kind = iota
	// KindScalar wraps a single string.
	KindScalar
	// KindList wraps a sequence of values.
	KindList
)

// Value is the tagged sum type None | Scalar(string) | List([]Value).
type Value struct {
	kind   Kind
	scalar string
	list   []Value
}

// None is the zero Value.
var None = Value{kind: KindNone}

// Scalar builds a scalar Value from a string.
func Scalar(s string) Value {
	return Value{kind: KindScalar, scalar: s}
}

// List builds a list Value.
func List(xs []Value) Value {
	return Value{kind: KindList, list: xs}
}

// FromAny converts an arbitrary Go value (typically returned by a compiled
// code fragment) into a Value. Slices become List; true becomes Scalar("1")
// and false Scalar(""); everything else is stringified into a Scalar; nil
// becomes None.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return None
	case Value:
		return x
	case string:
		return Scalar(x)
	case []Value:
		return List(x)
	case []any:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = FromAny(e)
		}
		return List(out)
	case bool:
		if x {
			return Scalar("1")
		}
		return Scalar("")
	default:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			out := make([]Value, rv.Len())
			for i := range out {
				out[i] = FromAny(rv.Index(i).Interface())
			}
			return List(out)
		}
		return Scalar(stringify(v))
	}
}

// ToAny unwraps a Value into a plain Go value suitable as a code-fragment
// execution environment binding: None becomes nil, Scalar its string, List
// a []any of recursively unwrapped elements.
func ToAny(v Value) any {
	switch v.kind {
	case KindNone:
		return nil
	case KindScalar:
		return v.scalar
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = ToAny(e)
		}
		return out
	}
	return nil
}

func stringify(v any) string {
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}

// Kind reports the value's tag.
func (v Value) Kind() Kind { return v.kind }

// IsNone reports whether v is the None variant.
func (v Value) IsNone() bool { return v.kind == KindNone }

// String returns the scalar payload; for None and List it returns "".
func (v Value) String() string {
	if v.kind == KindScalar {
		return v.scalar
	}
	return ""
}

// Elements returns the list payload; for None and Scalar it returns nil.
func (v Value) Elements() []Value {
	if v.kind == KindList {
		return v.list
	}
	return nil
}

// IsEmptyScalar reports whether v is a Scalar with an empty string.
func (v Value) IsEmptyScalar() bool {
	return v.kind == KindScalar && v.scalar == ""
}

// IsEmptyList reports whether v is a List with zero elements.
func (v Value) IsEmptyList() bool {
	return v.kind == KindList && len(v.list) == 0
}

// Classification is the scalar-like/array-like/empty trichotomy used by
// VarScope's type= attribute (spec.md §4.4).
type Classification string

const (
	ClassScalar Classification = "scalar"
	ClassArray  Classification = "array"
	ClassEmpty  Classification = "empty"
)

// Classify implements spec.md §4.4's classification rule:
//
//	scalar-like if V is a non-empty Scalar
//	array-like  if V is a non-empty List
//	empty       otherwise
func (v Value) Classify() Classification {
	switch v.kind {
	case KindScalar:
		if v.scalar != "" {
			return ClassScalar
		}
	case KindList:
		if len(v.list) > 0 {
			return ClassArray
		}
	}
	return ClassEmpty
}

// Normalize implements the "normalize to a list" step of §4.4: array-like
// values pass through as-is, scalar-like values become a one-element list,
// and empty values become an empty list.
func (v Value) Normalize() []Value {
	switch v.Classify() {
	case ClassArray:
		return v.list
	case ClassScalar:
		return []Value{v}
	default:
		return nil
	}
}

// Truthy reports whether v should be treated as a true condition result,
// used by grep and by <:cond>/<:case> evaluation.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNone:
		return false
	case KindScalar:
		return v.scalar != "" && v.scalar != "0"
	case KindList:
		return len(v.list) > 0
	}
	return false
}

// Render flattens v into the output buffer following the Code(frag, body)
// rendering rule in spec.md §4.4: None contributes nothing, Scalar
// contributes its string literally, and List renders each element in
// sequence, recursively.
func Render(v Value, out *strings.Builder) {
	switch v.kind {
	case KindNone:
		return
	case KindScalar:
		out.WriteString(v.scalar)
	case KindList:
		for _, e := range v.list {
			Render(e, out)
		}
	}
}

// Join renders v the way Render does, but returns the string directly.
func Join(v Value) string {
	var b strings.Builder
	Render(v, &b)
	return b.String()
}
