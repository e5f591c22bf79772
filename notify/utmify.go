package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/transport"
)

const HeaderUTMifyToken = "x-api-token"

type utmifyPayload struct {
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	Event         string `json:"event"`
	Amount        int64  `json:"amount"`
	CustomerEmail string `json:"customerEmail"`
}

// UTMifyForwarder reports order changes to the UTMify tracking API.
type UTMifyForwarder struct {
	url   string
	token string
	http  *transport.RESTAdapter
}

func NewUTMifyForwarder(cfg core.UTMifyConfig, adapter *transport.RESTAdapter) (*UTMifyForwarder, error) {
	url := strings.TrimSpace(cfg.URL)
	token := strings.TrimSpace(cfg.Token)
	if url == "" {
		return nil, fmt.Errorf("notify: utmify url is required")
	}
	if token == "" {
		return nil, fmt.Errorf("notify: utmify token is required")
	}
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	return &UTMifyForwarder{url: url, token: token, http: adapter}, nil
}

func (*UTMifyForwarder) Name() string {
	return "utmify"
}

func (f *UTMifyForwarder) Forward(ctx context.Context, event core.OrderEvent) error {
	body, err := json.Marshal(utmifyPayload{
		OrderID:       event.Order.ID,
		Status:        strings.ToLower(string(event.Order.Status)),
		Event:         event.EventName,
		Amount:        event.Order.AmountCents,
		CustomerEmail: event.Order.CustomerEmail,
	})
	if err != nil {
		return err
	}
	res, err := f.http.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    f.url,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			HeaderUTMifyToken: f.token,
		},
		Body: body,
	})
	if err != nil {
		return err
	}
	if !res.Success() {
		return transport.StatusError(res)
	}
	return nil
}
