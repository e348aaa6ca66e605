package provider

import (
	"mailpilot/core/domain"
	"mailpilot/core/port/out"
)

// Registry holds one adapter instance per supported provider.
type Registry struct {
	adapters map[domain.Provider]out.MailProvider
}

// RegistryConfig holds all provider configurations.
type RegistryConfig struct {
	Gmail   *GmailConfig
	Outlook *OutlookConfig
}

// NewRegistry builds the adapter set. Adapters are stateless apart from the
// Gmail circuit breaker, so one instance serves every credential.
func NewRegistry(cfg *RegistryConfig) *Registry {
	adapters := make(map[domain.Provider]out.MailProvider)
	if cfg.Gmail != nil {
		adapters[domain.ProviderGmail] = NewGmailAdapter(cfg.Gmail)
	}
	if cfg.Outlook != nil {
		adapters[domain.ProviderOutlook] = NewOutlookAdapter(cfg.Outlook)
	}
	return &Registry{adapters: adapters}
}

// Get returns the adapter for a provider.
func (r *Registry) Get(provider domain.Provider) (out.MailProvider, bool) {
	adapter, ok := r.adapters[provider]
	return adapter, ok
}

var _ out.ProviderRegistry = (*Registry)(nil)
