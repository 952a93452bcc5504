// Package events defines the events emitted on the in-process event bus.
//
// Available event types:
//   - OutcomeEvent: one connector reached a terminal dispatch status
//   - RunEvent: an optimize-and-dispatch run finished
//   - StationEvent: a station connected or disconnected
package events
