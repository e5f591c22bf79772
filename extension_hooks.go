package checkout

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-checkout/notify"
	"github.com/goliatone/go-checkout/transport"
)

// ForwarderFactory builds a secondary notification forwarder. Returning a
// nil forwarder leaves it disabled for cfg.
type ForwarderFactory func(cfg Config, http *transport.RESTAdapter) (notify.Forwarder, error)

// ExtensionHooks collects named forwarders that receive order events next
// to the outbound webhook dispatcher.
type ExtensionHooks struct {
	mu         sync.RWMutex
	forwarders map[string]ForwarderFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{forwarders: map[string]ForwarderFactory{}}
}

// DefaultExtensionHooks registers the UTMify conversion forwarder.
func DefaultExtensionHooks() *ExtensionHooks {
	hooks := NewExtensionHooks()
	_ = hooks.RegisterForwarder("utmify", UTMifyForwarder)
	return hooks
}

func (h *ExtensionHooks) RegisterForwarder(name string, factory ForwarderFactory) error {
	if h == nil {
		return fmt.Errorf("checkout: extension hooks are nil")
	}
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return fmt.Errorf("checkout: forwarder name is required")
	}
	if factory == nil {
		return fmt.Errorf("checkout: forwarder %q factory is required", name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.forwarders[name]; exists {
		return fmt.Errorf("checkout: forwarder %q already registered", name)
	}
	h.forwarders[name] = factory
	return nil
}

func (h *ExtensionHooks) ForwarderNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.forwarders))
	for name := range h.forwarders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Forwarders builds every enabled forwarder in name order.
func (h *ExtensionHooks) Forwarders(cfg Config, http *transport.RESTAdapter) ([]notify.Forwarder, error) {
	if h == nil {
		return nil, nil
	}
	names := h.ForwarderNames()
	h.mu.RLock()
	factories := make(map[string]ForwarderFactory, len(h.forwarders))
	for name, factory := range h.forwarders {
		factories[name] = factory
	}
	h.mu.RUnlock()

	out := make([]notify.Forwarder, 0, len(names))
	for _, name := range names {
		forwarder, err := factories[name](cfg, http)
		if err != nil {
			return nil, fmt.Errorf("checkout: forwarder %q: %w", name, err)
		}
		if forwarder != nil {
			out = append(out, forwarder)
		}
	}
	return out, nil
}
