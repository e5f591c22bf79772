// Package transport wraps outbound HTTP calls made by the gateway client,
// the webhook dispatcher and the secondary forwarders.
package transport
