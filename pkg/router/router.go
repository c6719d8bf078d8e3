package router

import (
	"fmt"
	"strings"

	"github.com/pario-ai/routebench/pkg/config"
	"github.com/pario-ai/routebench/pkg/models"
)

// Target is a resolved model id and provider hint.
type Target struct {
	Model    string
	Provider string
}

// Order returns the provider routing order for a request, or nil when the
// router should choose.
func (t Target) Order() []string {
	if t.Provider == "" || t.Provider == models.ProviderAuto {
		return nil
	}
	return []string{t.Provider}
}

// Router resolves configured aliases to model ids and provider pins.
type Router struct {
	aliases map[string]config.AliasConfig
}

// New creates a Router from the given configuration.
func New(cfg *config.Config) *Router {
	r := &Router{aliases: make(map[string]config.AliasConfig, len(cfg.Aliases))}
	for _, a := range cfg.Aliases {
		r.aliases[strings.ToLower(a.Name)] = a
	}
	return r
}

// Resolve returns the target for a requested name. A configured alias maps
// to its model; an explicit provider overrides the alias pin; an empty
// provider becomes "auto". Names that are not aliases must look like a
// catalog id ("vendor/model").
func (r *Router) Resolve(name, provider string) (Target, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Target{}, fmt.Errorf("no model given")
	}

	t := Target{Model: name, Provider: strings.TrimSpace(provider)}
	if alias, ok := r.aliases[strings.ToLower(name)]; ok {
		t.Model = alias.Model
		if t.Provider == "" {
			t.Provider = alias.Provider
		}
	} else if !strings.Contains(name, "/") {
		return Target{}, fmt.Errorf("unknown model %q: not an alias and not a vendor/model id", name)
	}

	if t.Provider == "" {
		t.Provider = models.ProviderAuto
	}
	return t, nil
}

// ResolveAll resolves each name with the same provider.
func (r *Router) ResolveAll(names []string, provider string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		t, err := r.Resolve(n, provider)
		if err != nil {
			return nil, err
		}
		out = append(out, t.Model)
	}
	return out, nil
}
