package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mfnet/internal/compiler"
	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/harness"
	"github.com/roach88/mfnet/internal/ir"
	"github.com/roach88/mfnet/internal/mapping"
)

// Error codes reported by CLI commands.
const (
	ErrCodeGeneric  = "E001"
	ErrCodeParse    = "E002" // document or value could not be parsed
	ErrCodeMapping  = "E003" // document could not be mapped into a network
	ErrCodeEval     = "E004" // evaluation failed
	ErrCodeNotFound = "E005" // file or directory not found
	ErrCodeStore    = "E006" // trace store could not be opened or queried
	ErrCodeInput    = "E007" // bad --inputs or --context value
)

// LoadError represents an error that occurred while loading a document or
// command input.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadDocument reads a .cue, .yaml or .yml graph document.
func LoadDocument(path string) (*ir.Document, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("document not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing document: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}

	doc, err := compiler.LoadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: "failed to parse document", Err: err}
	}
	return doc, nil
}

// newLibrary returns the node library every command maps documents with.
func newLibrary() *mapping.Library {
	return mapping.StandardLibrary(ctype.NewDefaultRegistry())
}

// ParseValues decodes graph input values. s is a YAML or JSON object, or
// "@path" to read one from a file. An empty s yields no values.
//
//	--inputs '{"x": [1, 2, 3]}'
//	--inputs @inputs.yaml
func ParseValues(s string) (ir.IRObject, error) {
	if s == "" {
		return ir.IRObject{}, nil
	}
	data := []byte(s)
	if path, ok := strings.CutPrefix(s, "@"); ok {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: "failed to read inputs", Err: err}
		}
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Code: ErrCodeInput, Message: "inputs must be an object", Err: err}
	}
	values := make(ir.IRObject, len(raw))
	for name, v := range raw {
		iv, err := ir.FromGo(v)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeInput, Message: fmt.Sprintf("input %q", name), Err: err}
		}
		values[name] = iv
	}
	return values, nil
}

// ParseContext decodes --context entries of the form key:type=value into
// the values context.value nodes read.
//
//	--context offset:float32=0.5 --context count:int32=3
func ParseContext(lib *mapping.Library, entries []string) (map[string]any, error) {
	values := make(map[string]any, len(entries))
	for _, entry := range entries {
		key, rest, ok := strings.Cut(entry, ":")
		typeName, text, ok2 := strings.Cut(rest, "=")
		if !ok || !ok2 || key == "" || typeName == "" {
			return nil, &LoadError{
				Code:    ErrCodeInput,
				Message: fmt.Sprintf("context %q: want key:type=value", entry),
			}
		}

		var raw any
		if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
			return nil, &LoadError{Code: ErrCodeInput, Message: fmt.Sprintf("context %q", key), Err: err}
		}
		v, err := harness.ContextValue(lib, typeName, raw)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeInput, Message: fmt.Sprintf("context %q", key), Err: err}
		}
		values[key] = v
	}
	return values, nil
}

// loadErrorCode returns the code of a *LoadError in err's chain, or
// fallback.
func loadErrorCode(err error, fallback string) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return fallback
}
