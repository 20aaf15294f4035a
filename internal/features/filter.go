package features

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// SchemaError reports that a feature vector's names drifted from what the
// denylist or the model expects. It is systemic: every sample would fail the
// same way.
type SchemaError struct {
	Missing    []string
	Unexpected []string
	Reason     string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("feature schema mismatch")
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; %d missing (first %q)", len(e.Missing), e.Missing[0])
	}
	if len(e.Unexpected) > 0 {
		fmt.Fprintf(&b, "; %d unexpected (first %q)", len(e.Unexpected), e.Unexpected[0])
	}
	return b.String()
}

// Filter turns a raw vector into the exact column set the classifier expects.
type Filter struct {
	denylist []string
	deny     map[string]struct{}
}

// NewFilter creates a filter that drops the given names. Pass Denylist for
// the production schema.
func NewFilter(denylist []string) *Filter {
	f := &Filter{
		denylist: append([]string(nil), denylist...),
		deny:     make(map[string]struct{}, len(denylist)),
	}
	for _, n := range denylist {
		f.deny[n] = struct{}{}
	}
	return f
}

// Width returns the filtered width for a raw schema of rawWidth names.
func (f *Filter) Width(rawWidth int) int {
	return rawWidth - len(f.deny)
}

// CheckSchema verifies that every denylisted name is present in schema.
func (f *Filter) CheckSchema(schema []string) error {
	present := make(map[string]struct{}, len(schema))
	for _, n := range schema {
		if _, dup := present[n]; dup {
			return &SchemaError{Reason: fmt.Sprintf("duplicate feature %q", n)}
		}
		present[n] = struct{}{}
	}
	var missing []string
	for _, n := range f.denylist {
		if _, ok := present[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing, Reason: "denylisted features absent from raw schema"}
	}
	return nil
}

// Apply imputes non-finite values with zero, orders the columns by name using
// plain string comparison ("10__x" sorts before "2__x") and removes the
// denylisted names. The input vector is not modified.
func (f *Filter) Apply(raw Vector) (Vector, error) {
	if err := raw.validate(); err != nil {
		return Vector{}, err
	}
	if err := f.CheckSchema(raw.Names); err != nil {
		return Vector{}, err
	}

	order := make([]int, len(raw.Names))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return raw.Names[order[a]] < raw.Names[order[b]] })

	out := Vector{
		Names:  make([]string, 0, f.Width(len(raw.Names))),
		Values: make([]float64, 0, f.Width(len(raw.Names))),
	}
	for _, i := range order {
		name := raw.Names[i]
		if _, drop := f.deny[name]; drop {
			continue
		}
		v := raw.Values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out.Names = append(out.Names, name)
		out.Values = append(out.Values, v)
	}
	return out, nil
}
