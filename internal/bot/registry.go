package bot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/V4T54L/tctk/internal/domain"
)

// Factory builds a feature with its configured arguments.
type Factory func() (domain.Feature, error)

// Registry maps feature names to factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names lists the registered features in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every name is registered.
func (r *Registry) Validate(names []string) error {
	var invalid []string
	for _, n := range names {
		if _, ok := r.factories[n]; !ok {
			invalid = append(invalid, n)
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s. possible values: [%s]",
		domain.ErrUnknownFeature, strings.Join(invalid, ", "), strings.Join(r.Names(), ", "))
}

// Build validates names and constructs the features in the given order.
// Repeated names are built once.
func (r *Registry) Build(names []string) ([]domain.Feature, error) {
	if err := r.Validate(names); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(names))
	features := make([]domain.Feature, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		f, err := r.factories[n]()
		if err != nil {
			return nil, fmt.Errorf("failed to build feature %s: %w", n, err)
		}
		features = append(features, f)
	}
	return features, nil
}
