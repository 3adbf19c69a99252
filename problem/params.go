// problem/params.go
package problem

import (
	"fmt"
	"math"
)

// ValidateParams checks submitted parameter values against an operator's
// specs. The check order is fixed: arity, then per-parameter type, then
// per-parameter bounds. JSON decoding delivers every number as float64, so an
// int parameter accepts a float64 with an integral value.
func ValidateParams(specs []ParamSpec, params []any) error {
	if len(params) != len(specs) {
		return fmt.Errorf("expected %d params, got %d", len(specs), len(params))
	}

	for i, spec := range specs {
		if err := validateType(spec, params[i]); err != nil {
			return fmt.Errorf("param %d (%s): %w", i, spec.Name, err)
		}
	}

	for i, spec := range specs {
		if err := validateBounds(spec, params[i]); err != nil {
			return fmt.Errorf("param %d (%s): %w", i, spec.Name, err)
		}
	}

	return nil
}

func validateType(spec ParamSpec, value any) error {
	switch spec.Type {
	case ParamInt:
		n, ok := asNumber(value)
		if !ok {
			return fmt.Errorf("expected int, got %T", value)
		}
		if n != math.Trunc(n) {
			return fmt.Errorf("expected int, got non-integral %v", n)
		}
	case ParamFloat:
		if _, ok := asNumber(value); !ok {
			return fmt.Errorf("expected float, got %T", value)
		}
	case ParamStr:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected str, got %T", value)
		}
	default:
		return fmt.Errorf("unknown param type %q", spec.Type)
	}
	return nil
}

func validateBounds(spec ParamSpec, value any) error {
	if spec.Type == ParamStr {
		return nil
	}
	n, _ := asNumber(value)
	if spec.Min != nil && n < *spec.Min {
		return fmt.Errorf("value %v below minimum %v", n, *spec.Min)
	}
	if spec.Max != nil && n > *spec.Max {
		return fmt.Errorf("value %v above maximum %v", n, *spec.Max)
	}
	return nil
}

// asNumber normalizes the numeric types a decoded JSON payload or a native
// caller may hand us.
func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// IntArg reads an integral value from a start_game args bag, falling back to
// def when absent or malformed.
func IntArg(args map[string]any, key string, def int) int {
	if args == nil {
		return def
	}
	n, ok := asNumber(args[key])
	if !ok || n != math.Trunc(n) {
		return def
	}
	return int(n)
}
