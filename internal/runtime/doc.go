/*
Package runtime implements the capability resource runtime shared by every
capkit capability.

# Architecture Overview

A Capability is an actor-isolated resource: a single mutex serializes all
mutations to the in-flight table, the priority queue, the result cache, and
the running metrics, so no two admission, drain, or completion steps can
interleave their read-modify-write sequences. Domain processor invocations
are the only operations that run outside the lock.

# Package Structure

## Capability (capability.go)

The Capability struct is the central orchestrator that wires together:
  - Lifecycle state machine (unknown → initializing → available →
    terminating → unavailable)
  - Admission control against the configured concurrency ceiling
  - Priority queue with the single-flight drain loop
  - Result memoization and broadcast
  - Environment watching and best-effort reconfiguration

## Admission & Queueing (queue.go)

Deferred requests wait in four priority tiers, FIFO within a tier. Admission
control bounds execution, not acceptance: the queue is unbounded unless a
capacity and overflow policy are configured. The drain loop resubmits entries
through the full admission path as capacity frees, highest tier first.

## Caching (cache.go, fingerprint.go)

Results are memoized under a fingerprint derived from the semantically
relevant request fields (payload and metadata; never the per-call ID or
timestamp). The default policy preserves insert-until-full-then-freeze;
LRU eviction is opt-in.

## Metrics (metrics.go)

Running aggregates (count, success/failure split, incremental mean, best and
worst processing time, error and priority histograms) are updated in O(1) per
completion and mirrored into Prometheus collectors.

## Broadcasting (broadcast.go)

Every terminal result and lifecycle transition is republished on an
in-process fan-out pub/sub. Subscribers are independent; a slow subscriber
drops messages beyond its buffer instead of stalling the runtime.

# Sub-packages

  - config/: capability configuration, validation, and the environment
    adjuster
  - errors/: sentinel errors and error types
  - ids/: ULID generation for request, result, and message IDs
  - jsoncodec/: JSON marshaling utilities (canonical encoding for
    fingerprints)
  - logging/: logger interface and adapters
*/
package runtime
