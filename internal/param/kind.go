package param

// Kind is the declared type of a parameter.
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindToggle Kind = "toggle"
	KindVector Kind = "vector"
	KindColor  Kind = "color"
	KindChoice Kind = "choice"
	KindRamp   Kind = "ramp"
)

var kinds = map[string]Kind{
	"int":    KindInt,
	"float":  KindFloat,
	"string": KindString,
	"toggle": KindToggle,
	"vector": KindVector,
	"color":  KindColor,
	"choice": KindChoice,
	"ramp":   KindRamp,
}

// ParseKind maps a keyword to a Kind.
func ParseKind(s string) (Kind, bool) {
	k, ok := kinds[s]
	return k, ok
}

// numeric reports whether min/max bounds apply to the kind.
func (k Kind) numeric() bool {
	switch k {
	case KindInt, KindFloat, KindVector, KindColor, KindRamp:
		return true
	}
	return false
}
