package mapping

import (
	"errors"
	"fmt"
)

// Error codes for mapping failures.
const (
	CodeInvalidDocument  = "INVALID_DOCUMENT"
	CodeUnknownType      = "UNKNOWN_TYPE"
	CodeUnknownNodeType  = "UNKNOWN_NODE_TYPE"
	CodeUnknownSocket    = "UNKNOWN_SOCKET"
	CodeNoConversion     = "NO_CONVERSION"
	CodeInsertFailed     = "INSERT_FAILED"
	CodeUnresolvedSocket = "UNRESOLVED_SOCKET"
	CodeInvalidValue     = "INVALID_VALUE"
)

// MappingError reports why a document could not be mapped.
type MappingError struct {
	Code    string
	Node    string // document node id, empty for document-level errors
	Message string
	Err     error
}

func (e *MappingError) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Node != "" {
		msg = fmt.Sprintf("%s: node %q: %s", e.Code, e.Node, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MappingError) Unwrap() error { return e.Err }

func newError(code, node, format string, args ...any) *MappingError {
	return &MappingError{Code: code, Node: node, Message: fmt.Sprintf(format, args...)}
}

// IsMappingError reports whether err wraps a *MappingError with the given
// code. An empty code matches any mapping error.
func IsMappingError(err error, code string) bool {
	var me *MappingError
	if !errors.As(err, &me) {
		return false
	}
	return code == "" || me.Code == code
}

// IsUnknownNodeType reports a node type with no insertion callback.
func IsUnknownNodeType(err error) bool { return IsMappingError(err, CodeUnknownNodeType) }

// IsNoConversion reports a link between types with no conversion.
func IsNoConversion(err error) bool { return IsMappingError(err, CodeNoConversion) }
