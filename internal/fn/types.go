package fn

import (
	"fmt"

	"github.com/roach88/mfnet/internal/ctype"
)

// DataCategory distinguishes one value per index from one vector per index.
type DataCategory int

const (
	CategorySingle DataCategory = iota
	CategoryVector
)

// DataType is a value type tagged Single or Vector.
type DataType struct {
	category DataCategory
	typ      *ctype.Type
}

// Single returns the data type of one t per index.
func Single(t *ctype.Type) DataType {
	if t == nil {
		panic("fn: nil type")
	}
	return DataType{category: CategorySingle, typ: t}
}

// Vector returns the data type of one vector of t per index.
func Vector(t *ctype.Type) DataType {
	if t == nil {
		panic("fn: nil type")
	}
	return DataType{category: CategoryVector, typ: t}
}

// Category returns Single or Vector.
func (d DataType) Category() DataCategory { return d.category }

// Type returns the element type. For vectors this is the base type.
func (d DataType) Type() *ctype.Type { return d.typ }

// IsSingle reports whether d is a Single type.
func (d DataType) IsSingle() bool { return d.category == CategorySingle }

// IsVector reports whether d is a Vector type.
func (d DataType) IsVector() bool { return d.category == CategoryVector }

// IsZero reports whether d was never initialized.
func (d DataType) IsZero() bool { return d.typ == nil }

func (d DataType) String() string {
	if d.typ == nil {
		return "<none>"
	}
	if d.category == CategoryVector {
		return "vector<" + d.typ.Name() + ">"
	}
	return d.typ.Name()
}

// InterfaceType is the role of a parameter.
type InterfaceType int

const (
	Input InterfaceType = iota
	Output
	Mutable
)

func (i InterfaceType) String() string {
	switch i {
	case Input:
		return "input"
	case Output:
		return "output"
	case Mutable:
		return "mutable"
	default:
		return fmt.Sprintf("InterfaceType(%d)", int(i))
	}
}

// ParamCategory combines InterfaceType and DataCategory.
type ParamCategory int

const (
	SingleInput ParamCategory = iota
	VectorInput
	SingleOutput
	VectorOutput
	SingleMutable
	VectorMutable
)

var paramCategoryNames = [...]string{
	SingleInput:   "single_input",
	VectorInput:   "vector_input",
	SingleOutput:  "single_output",
	VectorOutput:  "vector_output",
	SingleMutable: "single_mutable",
	VectorMutable: "vector_mutable",
}

func (c ParamCategory) String() string {
	if c < 0 || int(c) >= len(paramCategoryNames) {
		return fmt.Sprintf("ParamCategory(%d)", int(c))
	}
	return paramCategoryNames[c]
}

// ParamType is the full type of one signature parameter.
type ParamType struct {
	iface InterfaceType
	data  DataType
}

// NewParamType pairs a role with a data type.
func NewParamType(iface InterfaceType, data DataType) ParamType {
	return ParamType{iface: iface, data: data}
}

func (p ParamType) InterfaceType() InterfaceType { return p.iface }
func (p ParamType) DataType() DataType           { return p.data }

// Category returns one of the six parameter categories.
func (p ParamType) Category() ParamCategory {
	vec := p.data.IsVector()
	switch p.iface {
	case Input:
		if vec {
			return VectorInput
		}
		return SingleInput
	case Output:
		if vec {
			return VectorOutput
		}
		return SingleOutput
	default:
		if vec {
			return VectorMutable
		}
		return SingleMutable
	}
}

// IsInputOrMutable reports whether the parameter is read by the function.
func (p ParamType) IsInputOrMutable() bool { return p.iface != Output }

// IsOutputOrMutable reports whether the parameter is written by the function.
func (p ParamType) IsOutputOrMutable() bool { return p.iface != Input }

func (p ParamType) String() string {
	return p.iface.String() + " " + p.data.String()
}
