// Package cli builds the form-relay command tree: serve runs the relay,
// fallback inspects the failed-delivery log and version prints build metadata.
package cli
