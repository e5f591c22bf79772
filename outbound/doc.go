// Package outbound delivers order events to vendor webhook subscriptions.
//
// Every delivery is recorded before it is sent. Failed attempts move to
// pending_retry on the backoff schedule and the Sweeper re-sends them from
// the stored payload snapshot.
package outbound
