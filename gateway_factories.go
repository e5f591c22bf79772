package checkout

import (
	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/gateway/pushinpay"
	"github.com/goliatone/go-checkout/notify"
	"github.com/goliatone/go-checkout/ratelimit"
	"github.com/goliatone/go-checkout/transport"
)

func PushinPayAdapter() *pushinpay.Adapter {
	return pushinpay.NewAdapter()
}

// PushinPayClient builds the PIX API client with per-account throttle
// tracking.
func PushinPayClient(cfg core.GatewayConfig, http *transport.RESTAdapter) *pushinpay.Client {
	return pushinpay.NewClient(http,
		pushinpay.WithTimeout(cfg.Timeout),
		pushinpay.WithRateLimiter(ratelimit.New()),
	)
}

// UTMifyForwarder is disabled unless utmify.enabled is set.
func UTMifyForwarder(cfg Config, http *transport.RESTAdapter) (notify.Forwarder, error) {
	if !cfg.UTMify.Enabled {
		return nil, nil
	}
	forwarder, err := notify.NewUTMifyForwarder(cfg.UTMify, http)
	if err != nil {
		return nil, err
	}
	return forwarder, nil
}
