// Package ctype provides runtime type descriptors and type-erased batched
// storage for the multi-function engine.
//
// A Type describes the layout (size, alignment) and lifecycle operations
// (construct, destruct, copy, relocate) of one Go value type. Descriptors are
// derived generically when a type is registered and are only ever referenced,
// never copied. Every value manipulation inside the engine goes through a
// descriptor; the engine itself never switches on concrete Go types.
//
// Storage comes in three owned forms that all satisfy Buffer:
//
//   - Array: n contiguous values
//   - VectorArray: n independently growable vectors of one element type
//   - SingleValue: one value that is broadcast to any batch length
//
// and in non-owning views: Span, MutableSpan, VArray (span or broadcast
// single) and VVectorArray (per-index vectors or one broadcast vector).
//
// Go memory is always zeroed on allocation, so the "uninitialized" operation
// variants behave like their "initialized" counterparts. Both are kept so call
// sites document whether a destination slot held a live value.
//
// Contract violations (nil buffer with nonzero length, misaligned buffer,
// element type mismatch, out-of-bounds access) panic.
package ctype
