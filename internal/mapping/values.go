package mapping

import (
	"fmt"
	"reflect"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/fn"
	"github.com/roach88/mfnet/internal/ir"
	"github.com/roach88/mfnet/internal/mask"
)

// codec converts between IR literals and values of one registered type.
type codec struct {
	// decode returns the decoded array, or the position of the first
	// element that does not decode.
	decode func(vals []ir.IRValue) (*ctype.Array, int)
	encode func(s ctype.Span) ir.IRArray
}

// RegisterCodec teaches the library how to read and write values of T.
// T must already be registered in the library's registry.
func RegisterCodec[T any](l *Library, decode func(ir.IRValue) (T, bool), encode func(T) ir.IRValue) {
	t := ctype.TypeOf[T](l.reg)
	l.codecs[t] = codec{
		decode: func(vals []ir.IRValue) (*ctype.Array, int) {
			out := make([]T, len(vals))
			for i, v := range vals {
				x, ok := decode(v)
				if !ok {
					return nil, i
				}
				out[i] = x
			}
			return ctype.FromSlice(t, out), -1
		},
		encode: func(s ctype.Span) ir.IRArray {
			vals := ctype.SpanValues[T](s)
			out := make(ir.IRArray, len(vals))
			for i, x := range vals {
				out[i] = encode(x)
			}
			return out
		},
	}
}

func (l *Library) codecFor(t *ctype.Type) (codec, error) {
	c, ok := l.codecs[t]
	if !ok {
		return codec{}, newError(CodeInvalidValue, "", "type %s has no value codec", t.Name())
	}
	return c, nil
}

// DecodeSingle decodes one IR literal as a value of type t.
func (l *Library) DecodeSingle(t *ctype.Type, v ir.IRValue) (*ctype.SingleValue, error) {
	c, err := l.codecFor(t)
	if err != nil {
		return nil, err
	}
	arr, bad := c.decode([]ir.IRValue{v})
	if bad >= 0 {
		return nil, newError(CodeInvalidValue, "", "cannot read %s as %s", describe(v), t.Name())
	}
	return ctype.SingleFromPtr(t, arr.Ptr(0)), nil
}

// GoValue decodes v as a value of type t and returns it as the Go value
// behind t, the form fn.Context hands to context-dependent functions.
func (l *Library) GoValue(t *ctype.Type, v ir.IRValue) (any, error) {
	sv, err := l.DecodeSingle(t, v)
	if err != nil {
		return nil, err
	}
	return reflect.NewAt(t.GoType(), sv.Ptr()).Elem().Interface(), nil
}

// BufferFromIR decodes the value fed to a socket of type dt over a batch
// of size elements.
//
// For single sockets a literal that decodes as one value is broadcast;
// otherwise v must be an array of exactly size values, one per index.
// For vector sockets a flat array is one vector shared by every index; an
// array of size arrays gives each index its own vector.
func (l *Library) BufferFromIR(dt fn.DataType, v ir.IRValue, size int) (ctype.Buffer, error) {
	t := dt.Type()
	c, err := l.codecFor(t)
	if err != nil {
		return nil, err
	}
	items, isArray := v.(ir.IRArray)

	if dt.IsSingle() {
		if arr, bad := c.decode([]ir.IRValue{v}); bad < 0 {
			return ctype.SingleFromPtr(t, arr.Ptr(0)), nil
		}
		if !isArray {
			return nil, newError(CodeInvalidValue, "", "cannot read %s as %s", describe(v), t.Name())
		}
		if len(items) != size {
			return nil, newError(CodeInvalidValue, "", "got %d values for a batch of %d", len(items), size)
		}
		arr, bad := c.decode(items)
		if bad >= 0 {
			return nil, newError(CodeInvalidValue, "", "element %d: cannot read %s as %s", bad, describe(items[bad]), t.Name())
		}
		return arr, nil
	}

	if !isArray {
		return nil, newError(CodeInvalidValue, "", "vector value must be an array, got %s", describe(v))
	}
	if arr, bad := c.decode(items); bad < 0 {
		return arr, nil
	}
	if len(items) != size {
		return nil, newError(CodeInvalidValue, "", "got %d vectors for a batch of %d", len(items), size)
	}
	va := ctype.NewVectorArray(t, size)
	for i, item := range items {
		vec, ok := item.(ir.IRArray)
		if !ok {
			return nil, newError(CodeInvalidValue, "", "vector %d: want array, got %s", i, describe(item))
		}
		arr, bad := c.decode(vec)
		if bad >= 0 {
			return nil, newError(CodeInvalidValue, "", "vector %d element %d: cannot read %s as %s", i, bad, describe(vec[bad]), t.Name())
		}
		va.Extend(i, arr.Span())
	}
	return va, nil
}

// BufferToIR encodes the value of a socket of type dt, one IR value per
// index in m. Vector values encode as arrays.
func (l *Library) BufferToIR(dt fn.DataType, buf ctype.Buffer, m mask.IndexMask) (ir.IRArray, error) {
	t := dt.Type()
	c, err := l.codecFor(t)
	if err != nil {
		return nil, err
	}
	if buf.Type() != t {
		return nil, newError(CodeInvalidValue, "", "buffer has type %s, want %s", buf.Type().Name(), t.Name())
	}

	out := make(ir.IRArray, 0, m.Size())
	switch b := buf.(type) {
	case *ctype.SingleValue:
		v := c.encode(ctype.NewSpan(t, b.Ptr(), 1))[0]
		m.ForEach(func(int) { out = append(out, v) })
	case *ctype.Array:
		if dt.IsVector() {
			vec := c.encode(b.Span())
			m.ForEach(func(int) { out = append(out, vec) })
			break
		}
		span := b.Span()
		m.ForEach(func(i int) { out = append(out, c.encode(span.Slice(i, 1))[0]) })
	case *ctype.VectorArray:
		m.ForEach(func(i int) { out = append(out, c.encode(b.Get(i))) })
	default:
		return nil, newError(CodeInvalidValue, "", "unsupported buffer %T", buf)
	}
	return out, nil
}

func describe(v ir.IRValue) string {
	switch v := v.(type) {
	case nil, ir.IRNull:
		return "null"
	case ir.IRString:
		return fmt.Sprintf("string %q", string(v))
	case ir.IRInt:
		return fmt.Sprintf("integer %d", int64(v))
	case ir.IRFloat:
		return fmt.Sprintf("number %g", float64(v))
	case ir.IRBool:
		return fmt.Sprintf("bool %t", bool(v))
	case ir.IRArray:
		return fmt.Sprintf("array of %d", len(v))
	case ir.IRObject:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
