package provider

import "strings"

// DefaultProviders are queried when no provider list is configured
var DefaultProviders = []string{"alibaba", "mrbilit", "safar366", "safarmarket"}

// Registry is the fixed set of providers, built once at start
type Registry struct {
	names []string
	index map[string]bool
}

// NewRegistry lower-cases and de-duplicates names, keeping their order.
// An empty list falls back to DefaultProviders.
func NewRegistry(names []string) *Registry {
	if len(names) == 0 {
		names = DefaultProviders
	}
	r := &Registry{index: make(map[string]bool, len(names))}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || r.index[n] {
			continue
		}
		r.index[n] = true
		r.names = append(r.names, n)
	}
	return r
}

// Names returns the providers in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Has reports whether a provider is registered
func (r *Registry) Has(name string) bool {
	return r.index[strings.ToLower(name)]
}
