// Package webhooks receives gateway payment webhooks.
//
// Each delivery runs verify -> normalize -> resolve order -> ledger dedup ->
// state machine -> notify. The event ledger is the only dedup mechanism, so
// gateway redeliveries are answered with "duplicate" and never re-applied.
package webhooks
