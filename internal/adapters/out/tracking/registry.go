// Package tracking holds the carrier-facing vendor adapters and the registry
// resolving them by carrier code. Carrier response parsing stays inside an
// adapter; the core only ever sees normalized events.
package tracking

import (
	"fmt"
	"strings"

	"tracking/internal/core/ports"
)

// Registry implements ports.ProviderRegistry over a static carrier map.
// Carrier codes are case-insensitive. The map is built once at composition
// time and never mutated afterwards, so lookups need no locking.
type Registry struct {
	providers map[string]ports.TrackingProvider
}

// NewRegistry creates a provider registry from a carrier code to adapter map.
func NewRegistry(providers map[string]ports.TrackingProvider) *Registry {
	normalized := make(map[string]ports.TrackingProvider, len(providers))
	for code, provider := range providers {
		normalized[normalizeCode(code)] = provider
	}
	return &Registry{providers: normalized}
}

// Resolve returns the adapter for carrierCode, or ErrMissingVendorConfig
// when none is registered.
func (r *Registry) Resolve(carrierCode string) (ports.TrackingProvider, error) {
	provider, ok := r.providers[normalizeCode(carrierCode)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ports.ErrMissingVendorConfig, carrierCode)
	}
	return provider, nil
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
