// Package traceout turns consolidated profiling traces into consumable
// artifacts: flat duration records, Chrome trace-viewer JSON, a compact
// binary file format, and aggregated per-name statistics.
package traceout
