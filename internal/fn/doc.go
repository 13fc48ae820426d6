// Package fn defines the multi-function calling convention: a batched,
// masked computation with a typed positional signature.
//
// A Function declares its Signature once and implements Call, which must
// write only the indices named by the mask. Every other slot of its output
// and mutable parameters stays untouched. That contract is what makes
// CallAuto free to split a mask into chunks and run them concurrently on
// the same buffers.
//
// Parameters are bound positionally through a ParamsBuilder. Names passed
// to the accessors are checked against the signature and never used for
// lookup.
package fn
