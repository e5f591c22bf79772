package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/notify"
	"github.com/goliatone/go-checkout/transport"
)

func TestExtensionHooks_RegisterForwarder(t *testing.T) {
	hooks := NewExtensionHooks()
	factory := func(Config, *transport.RESTAdapter) (notify.Forwarder, error) {
		return namedForwarder{name: "crm"}, nil
	}
	if err := hooks.RegisterForwarder(" CRM ", factory); err != nil {
		t.Fatalf("register forwarder: %v", err)
	}
	if err := hooks.RegisterForwarder("crm", factory); err == nil {
		t.Fatalf("expected duplicate forwarder registration error")
	}
	if err := hooks.RegisterForwarder("  ", factory); err == nil {
		t.Fatalf("expected empty name error")
	}
	if err := hooks.RegisterForwarder("other", nil); err == nil {
		t.Fatalf("expected nil factory error")
	}
	names := hooks.ForwarderNames()
	if len(names) != 1 || names[0] != "crm" {
		t.Fatalf("unexpected forwarder names %v", names)
	}
}

func TestExtensionHooks_ForwardersInNameOrderSkippingDisabled(t *testing.T) {
	hooks := NewExtensionHooks()
	_ = hooks.RegisterForwarder("zeta", func(Config, *transport.RESTAdapter) (notify.Forwarder, error) {
		return namedForwarder{name: "zeta"}, nil
	})
	_ = hooks.RegisterForwarder("alpha", func(Config, *transport.RESTAdapter) (notify.Forwarder, error) {
		return namedForwarder{name: "alpha"}, nil
	})
	_ = hooks.RegisterForwarder("off", func(Config, *transport.RESTAdapter) (notify.Forwarder, error) {
		return nil, nil
	})

	forwarders, err := hooks.Forwarders(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("forwarders: %v", err)
	}
	if len(forwarders) != 2 {
		t.Fatalf("expected two enabled forwarders, got %d", len(forwarders))
	}
	if forwarders[0].Name() != "alpha" || forwarders[1].Name() != "zeta" {
		t.Fatalf("expected deterministic ordering, got %s, %s", forwarders[0].Name(), forwarders[1].Name())
	}
}

func TestExtensionHooks_FactoryErrorIsWrapped(t *testing.T) {
	hooks := NewExtensionHooks()
	boom := errors.New("boom")
	_ = hooks.RegisterForwarder("broken", func(Config, *transport.RESTAdapter) (notify.Forwarder, error) {
		return nil, boom
	})
	if _, err := hooks.Forwarders(DefaultConfig(), nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped factory error, got %v", err)
	}
}

func TestDefaultExtensionHooks_UTMifyFollowsConfig(t *testing.T) {
	hooks := DefaultExtensionHooks()
	if names := hooks.ForwarderNames(); len(names) != 1 || names[0] != "utmify" {
		t.Fatalf("expected utmify hook, got %v", names)
	}

	cfg := DefaultConfig()
	forwarders, err := hooks.Forwarders(cfg, nil)
	if err != nil {
		t.Fatalf("forwarders disabled: %v", err)
	}
	if len(forwarders) != 0 {
		t.Fatalf("expected utmify to stay off by default")
	}

	cfg.UTMify = core.UTMifyConfig{Enabled: true, URL: "https://utmify.test/orders", Token: "tok"}
	forwarders, err = hooks.Forwarders(cfg, transport.NewRESTAdapter(nil))
	if err != nil {
		t.Fatalf("forwarders enabled: %v", err)
	}
	if len(forwarders) != 1 || forwarders[0].Name() != "utmify" {
		t.Fatalf("expected utmify forwarder, got %d", len(forwarders))
	}

	cfg.UTMify.Token = ""
	if _, err := hooks.Forwarders(cfg, nil); err == nil {
		t.Fatalf("expected missing token error")
	}
}

type namedForwarder struct {
	name string
}

func (f namedForwarder) Name() string { return f.name }

func (namedForwarder) Forward(context.Context, core.OrderEvent) error { return nil }
