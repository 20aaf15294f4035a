package features

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Param is one named calculator argument. Value must be an int, float64,
// bool, string or []int (rendered as a tuple).
type Param struct {
	Key   string
	Value any
}

// Params is one parameter combination for a calculator.
type Params []Param

// Int returns the integer value stored under key.
func (p Params) Int(key string) int {
	for _, kv := range p {
		if kv.Key == key {
			switch v := kv.Value.(type) {
			case int:
				return v
			case float64:
				return int(v)
			}
		}
	}
	panic(fmt.Sprintf("features: missing int param %q", key))
}

// Float returns the numeric value stored under key.
func (p Params) Float(key string) float64 {
	for _, kv := range p {
		if kv.Key == key {
			switch v := kv.Value.(type) {
			case int:
				return float64(v)
			case float64:
				return v
			}
		}
	}
	panic(fmt.Sprintf("features: missing float param %q", key))
}

// Ints returns the integer tuple stored under key.
func (p Params) Ints(key string) []int {
	for _, kv := range p {
		if kv.Key == key {
			if v, ok := kv.Value.([]int); ok {
				return v
			}
		}
	}
	panic(fmt.Sprintf("features: missing int tuple param %q", key))
}

// Bool returns the boolean value stored under key.
func (p Params) Bool(key string) bool {
	for _, kv := range p {
		if kv.Key == key {
			if v, ok := kv.Value.(bool); ok {
				return v
			}
		}
	}
	panic(fmt.Sprintf("features: missing bool param %q", key))
}

// String returns the string value stored under key.
func (p Params) String(key string) string {
	for _, kv := range p {
		if kv.Key == key {
			if v, ok := kv.Value.(string); ok {
				return v
			}
		}
	}
	panic(fmt.Sprintf("features: missing string param %q", key))
}

// Suffix renders the parameter part of a feature name: keys in sorted order,
// joined as "key_value" pairs separated by "__".
func (p Params) Suffix() string {
	keys := make([]string, len(p))
	for i, kv := range p {
		keys[i] = kv.Key
	}
	sort.Strings(keys)
	return p.SuffixOrdered(keys)
}

// SuffixOrdered renders the parameter part of a feature name with the keys
// in the given order. A few combiners name their outputs this way instead of
// alphabetically.
func (p Params) SuffixOrdered(keys []string) string {
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		for _, kv := range p {
			if kv.Key == key {
				parts = append(parts, kv.Key+"_"+formatParamValue(kv.Value))
				break
			}
		}
	}
	return strings.Join(parts, "__")
}

// FeatureName builds the column name for one calculator output on one channel.
func FeatureName(channel int, calculator string, p Params) string {
	name := strconv.Itoa(channel) + "__" + calculator
	if s := p.Suffix(); s != "" {
		name += "__" + s
	}
	return name
}

func formatParamValue(v any) string {
	switch val := v.(type) {
	case int:
		return strconv.Itoa(val)
	case float64:
		return FormatFloat(val)
	case bool:
		if val {
			return "True"
		}
		return "False"
	case string:
		return `"` + val + `"`
	case []int:
		items := make([]string, len(val))
		for i, v := range val {
			items[i] = strconv.Itoa(v)
		}
		return "(" + strings.Join(items, ", ") + ")"
	default:
		return fmt.Sprint(val)
	}
}

// FormatFloat renders f with twelve significant digits and keeps a trailing
// ".0" on integral values, so 3*0.1 prints as "0.3" and 50 as "50.0". Feature
// names and the report's accuracy column both depend on this exact form.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', 12, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}
