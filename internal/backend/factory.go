package backend

import "fmt"

// Builder constructs one backend implementation.
type Builder func() (Result, error)

// Build constructs the named backend from the given builders. The builder map
// keeps this package free of driver imports; callers supply constructors for
// the implementations they link in.
func Build(name string, builders map[string]Builder) (Result, error) {
	builder, ok := builders[name]
	if !ok {
		return Result{}, fmt.Errorf("unknown data backend %q", name)
	}
	res, err := builder()
	if err != nil {
		return Result{}, fmt.Errorf("build %s backend: %w", name, err)
	}
	if res.Cleanup == nil {
		res.Cleanup = func() error { return nil }
	}
	return res, nil
}
