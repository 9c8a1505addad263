// Package promptea provides a small public façade for building and running
// prompt workflows without importing internal packages. It re-exports the
// canvas types and exposes a Runtime that keeps workflows in memory and
// sends them to an inference backend.
package promptea
