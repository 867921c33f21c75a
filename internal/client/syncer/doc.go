// Package syncer drives synchronization between the local store and the
// remote store.
//
// # States
//
// The Orchestrator is always in one of three states: offline, online or
// syncing. A connectivity-restored signal (offline -> online) starts a full
// sync; a full sync moves online -> syncing and back to online or offline,
// depending on connectivity at the end of the cycle. A FullSync call made
// while offline or while a cycle is running returns a zero Result at once.
//
// # Cycle
//
// A cycle pulls every collection newer than the stored watermark, then drains
// the outbox oldest-first with one remote call per entry, then stores the new
// watermark and notifies data subscribers. Network failures never abort a
// cycle: a failed push leaves its entry queued, a failed collection pull
// leaves the watermark where it was, and a malformed record is skipped on its
// own. Every push call is bounded by PushTimeout and the whole cycle by
// CycleTimeout.
package syncer
