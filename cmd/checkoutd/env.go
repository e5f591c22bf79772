package main

import (
	"context"
	"strings"

	"github.com/goliatone/go-checkout/core"

	"github.com/goliatone/go-config/config"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	envPrefix = "CHECKOUT_"
	// envDelimiter separates sections so underscore keys stay intact:
	// CHECKOUT_WEBHOOK__ACK_UNKNOWN_ORDERS maps to webhook.ack_unknown_orders.
	envDelimiter = "__"
)

// envLoader reads CHECKOUT_ variables through the go-config env provider.
// Values stay strings; the config build decodes them into typed fields.
type envLoader struct {
	logger glog.Logger
}

// envSnapshot is the throwaway target the go-config container decodes into.
// Only the raw koanf tree is used.
type envSnapshot struct{}

func (*envSnapshot) Validate() error { return nil }

func (l envLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	container := config.New(&envSnapshot{}).
		WithProvider(config.EnvProvider[*envSnapshot](envPrefix, envDelimiter))
	if l.logger != nil {
		container = container.WithLogger(l.logger)
	}
	if err := container.Load(ctx); err != nil {
		return nil, err
	}
	raw := container.K.Raw()
	splitList(raw, "retry", "schedule")
	return raw, nil
}

// splitList turns a comma separated value at section.key into a list.
func splitList(raw map[string]any, section, key string) {
	values, ok := raw[section].(map[string]any)
	if !ok {
		return
	}
	value, ok := values[key].(string)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	values[key] = out
}

var _ core.RawConfigLoader = envLoader{}
