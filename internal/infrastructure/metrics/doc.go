// Package metrics exposes the Prometheus collectors of the canvas service
// and the inference backend: workflow runs, node churn, uploads, backend
// calls and HTTP traffic. Each Collector owns its registry so tests and
// multiple servers in one process never collide.
package metrics
