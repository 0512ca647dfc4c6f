// Package capkit is a small runtime for hosting system capabilities behind a
// uniform lifecycle, admission, and observation surface. A Capability wraps a
// processing function with a state machine, a bounded concurrency ceiling, a
// four-tier priority queue, a fingerprint-keyed result cache, and a fan-out
// result broadcaster built on Watermill's in-memory pub/sub.
//
// A minimal setup fills a Config, builds a Capability via New (or through the
// capability registry), calls Activate, and submits requests; see README.md
// for a copy/paste quick start snippet.
//
// # Capabilities
//
// Capkit ships 6 capability packages out of the box, each self-registering
// with the capability registry on import:
//   - keyboard: text autocorrection and next-word prediction
//   - touch: gesture classification from touch point sequences
//   - accessibility: UI element audits against a fixed rule set
//   - uirender: declarative view-tree flattening into render plans
//   - gpu: draw-call batching by pipeline
//   - animation: keyframe planning with timing curves
//
// # Admission
//
// Submit admits a request immediately when the in-flight count is under the
// configured ceiling, serves it from cache when an identical request has
// already completed, and otherwise queues it by priority. Queued requests are
// drained in priority order as slots free up. Every completed result, cached
// or fresh, reaches all active result stream subscribers.
//
// # Environment
//
// An EnvironmentSource feeds power and debug state to the runtime. Under low
// power the effective configuration is clamped (fewer concurrent slots, a
// smaller cache, tighter timeouts, a submit rate limit); under debug, logging
// is forced on. Adjustment is pure and idempotent, so repeated environment
// events converge to the same effective configuration.
//
// When you need more control, Dependencies exposes well-scoped hooks: bring
// your own ServiceLogger, EnvironmentSource, or Prometheus Registerer.
package capkit
