package tools

import (
	"fmt"
	"strconv"
)

// Args are the arguments of a single step as decoded from the plan.
type Args map[string]any

// String returns a required argument as a string. Scalars the model emitted
// unquoted are formatted rather than rejected.
func (a Args) String(name string) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", fmt.Errorf("%w %q", ErrMissingArgument, name)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("argument %q must be a string, got %T", name, v)
	}
}

func (a Args) OptionalString(name, def string) string {
	s, err := a.String(name)
	if err != nil || s == "" {
		return def
	}
	return s
}
