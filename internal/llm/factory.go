package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stellarlinkco/health-corpus/internal/config"
)

// Registry holds the providers built from one config, keyed by normalized
// name. The anthropic alias registers under "claude".
type Registry struct {
	byName map[string]Provider
}

func (r *Registry) add(p Provider) {
	if r == nil || p == nil {
		return
	}
	name := normalizeProviderName(p.Name())
	if name == "" {
		return
	}
	if r.byName == nil {
		r.byName = make(map[string]Provider)
	}
	r.byName[name] = p
}

// Get looks up a provider. Lookup is case-insensitive.
func (r *Registry) Get(name string) (Provider, bool) {
	if r == nil || r.byName == nil {
		return nil, false
	}
	name = normalizeProviderName(name)
	if name == "" {
		return nil, false
	}
	p, ok := r.byName[name]
	return p, ok
}

// Names lists the registered provider names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeProviderName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}

	r := &Registry{}
	for name, pcfg := range cfg.LLM.Providers {
		switch normalizeProviderName(name) {
		case "":
			continue
		case "claude", "anthropic":
			r.add(NewClaudeProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model))
		case "openai":
			r.add(NewOpenAIProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model))
		default:
			return nil, fmt.Errorf("llm: unknown provider %q", name)
		}
	}

	return r, nil
}

// DefaultProviderFromConfig resolves the provider named by
// llm.default_provider, falling back to the sole configured provider when the
// default is absent.
func DefaultProviderFromConfig(cfg *config.Config) (Provider, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}
	reg, err := NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(cfg.LLM.DefaultProvider)
	if name == "" {
		name = "claude"
	}
	if p, ok := reg.Get(name); ok {
		return p, nil
	}

	names := reg.Names()
	if len(names) == 1 {
		p, _ := reg.Get(names[0])
		return p, nil
	}
	return nil, fmt.Errorf("llm: default provider %q not configured (available: %s)", name, strings.Join(names, ", "))
}
