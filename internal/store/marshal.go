package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/mfnet/internal/ir"
)

// marshalObject converts an IRObject to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so equal values store byte-identically.
func marshalObject(what string, obj ir.IRObject) (string, error) {
	if obj == nil {
		obj = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	return string(data), nil
}

// unmarshalObject parses canonical JSON TEXT to IRObject.
// Uses ir.IRObject.UnmarshalJSON, which keeps integers above 2^53 exact.
func unmarshalObject(what, data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", what, err)
	}
	return obj, nil
}

// Pass names never contain commas (optimize.ParsePasses splits on them).
func marshalPasses(passes []string) string {
	return strings.Join(passes, ",")
}

func unmarshalPasses(data string) []string {
	if data == "" {
		return []string{}
	}
	return strings.Split(data, ",")
}
