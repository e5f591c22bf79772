// Package core holds the checkout domain: orders and their status machine,
// the gateway event ledger contract, outbound webhook subscriptions and
// deliveries, the retry backoff schedule, configuration and the error
// envelope shared by every adapter. Adapters depend on core; core depends
// on no adapter.
package core
