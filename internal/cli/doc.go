// Package cli implements vigilctl, the operator CLI for the assignment
// service.
//
// The CLI talks to the HTTP API only and does not import the service's
// internal packages; response types are declared here.
//
// Commands:
//   - generate: run one generation cycle now
//   - stats: assignment counts by state
//   - leases: open leases of a worker (--worker) or of --identity
//   - checks: check history of a task (--task)
//
// Data goes to stdout as a table, or as JSON with --json; messages go to
// stderr, so output can be piped: vigilctl stats --json | jq .
package cli
