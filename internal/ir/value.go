package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// IRValue is a sealed interface for literal parameter values.
// Only IRNull, IRString, IRInt, IRFloat, IRBool, IRArray and IRObject
// implement it.
type IRValue interface {
	irValue()
}

// IRNull is the null literal.
type IRNull struct{}

func (IRNull) irValue() {}

func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString is a string literal.
type IRString string

func (IRString) irValue() {}

// IRInt is an integer literal. Documents keep integers exact.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a finite floating point value. NaN and infinities
// cannot be serialized.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool is a boolean literal.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is a list literal, e.g. a vector parameter.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject maps names to literals: node params, graph inputs, outputs.
// Iterate with SortedKeys when order matters.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// AsFloat returns v as a float64. Integers are widened.
func AsFloat(v IRValue) (float64, bool) {
	switch val := v.(type) {
	case IRFloat:
		return float64(val), true
	case IRInt:
		return float64(val), true
	default:
		return 0, false
	}
}

// AsInt returns v as an int64. Floats with an integral value are accepted.
func AsInt(v IRValue) (int64, bool) {
	switch val := v.(type) {
	case IRInt:
		return int64(val), true
	case IRFloat:
		f := float64(val)
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}

// AsString returns v as a string.
func AsString(v IRValue) (string, bool) {
	s, ok := v.(IRString)
	return string(s), ok
}

// AsBool returns v as a bool.
func AsBool(v IRValue) (bool, bool) {
	b, ok := v.(IRBool)
	return bool(b), ok
}

// SortedKeys orders keys by UTF-16 code units as RFC 8785 requires. This
// differs from byte order for characters above U+FFFF.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// UnmarshalJSON decodes a JSON object, keeping integer literals as IRInt.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	o, ok := v.(IRObject)
	if !ok {
		return fmt.Errorf("want JSON object, got %s", kindOf(v))
	}
	*obj = o
	return nil
}

// UnmarshalJSON decodes a JSON array, keeping integer literals as IRInt.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	a, ok := v.(IRArray)
	if !ok {
		return fmt.Errorf("want JSON array, got %s", kindOf(v))
	}
	*arr = a
	return nil
}

func kindOf(v IRValue) string {
	switch v.(type) {
	case IRNull:
		return "null"
	case IRString:
		return "string"
	case IRInt, IRFloat:
		return "number"
	case IRBool:
		return "bool"
	case IRArray:
		return "array"
	case IRObject:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// numberValue keeps integer literals as IRInt and everything with a
// fraction or exponent as IRFloat.
func numberValue(n json.Number) (IRValue, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return IRInt(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %s: %w", s, err)
	}
	return IRFloat(f), nil
}

// MarshalJSON writes keys in SortedKeys order. Strings are not normalized;
// hashes go through MarshalCanonical.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	return appendValue(nil, obj)
}

// MarshalIRValue encodes v as compact JSON with sorted object keys.
func MarshalIRValue(v IRValue) ([]byte, error) {
	return appendValue(nil, v)
}

func appendValue(buf []byte, v IRValue) ([]byte, error) {
	switch val := v.(type) {
	case IRNull:
		return append(buf, "null"...), nil
	case IRBool:
		return strconv.AppendBool(buf, bool(val)), nil
	case IRInt:
		return strconv.AppendInt(buf, int64(val), 10), nil
	case IRString, IRFloat:
		// encoding/json owns string escaping and float formatting, and
		// rejects NaN and infinities.
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return append(buf, b...), nil
	case IRArray:
		buf = append(buf, '[')
		for i, elem := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			if buf, err = appendValue(buf, elem); err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return append(buf, ']'), nil
	case IRObject:
		buf = append(buf, '{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf = append(buf, ',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(append(buf, key...), ':')
			if buf, err = appendValue(buf, val[k]); err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
		}
		return append(buf, '}'), nil
	default:
		return nil, fmt.Errorf("cannot marshal %T", v)
	}
}

// UnmarshalIRValue decodes JSON into an IRValue.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromGo(raw)
}

// FromGo converts a decoded Go value into an IRValue. It accepts the shapes
// produced by encoding/json (with UseNumber), yaml.v3 and CUE's Decode.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case int:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("number out of int64 range: %d", val)
		}
		return IRInt(val), nil
	case float32:
		return IRFloat(val), nil
	case float64:
		return IRFloat(val), nil
	case json.Number:
		return numberValue(val)
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
