// Package reconcile turns transcripts into orders. Items come from a purely
// syntactic comma split (or the verbatim transcript); nothing checks them
// against a menu. Orders are persisted through a Sink chosen by configuration.
package reconcile
