package station

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/yaswanthhh/ev-charge-optimizer/core/ocpp"
	"github.com/yaswanthhh/ev-charge-optimizer/internal/eventbus"
)

// AckRecord is the latest acknowledgment received from a station.
type AckRecord struct {
	StationID string
	At        time.Time
	MessageID string
	Payload   json.RawMessage
}

// Ledger keeps the most recent acknowledgment per station and wakes the
// dispatches waiting on it. Only the latest record is retained.
type Ledger struct {
	mu     sync.RWMutex
	latest map[string]AckRecord
	notify *eventbus.Keyed[string, AckRecord]
}

// DefaultWatchBuffer is the number of acknowledgments a Watcher holds
// before newer ones are dropped.
const DefaultWatchBuffer = 64

// NewLedger returns an empty ledger whose watchers buffer
// DefaultWatchBuffer records.
func NewLedger() *Ledger { return NewLedgerSize(DefaultWatchBuffer) }

// NewLedgerSize returns an empty ledger whose watchers buffer up to buffer
// records. It should be at least the number of connectors dispatched to one
// station at a time, since they all share that station's entry.
func NewLedgerSize(buffer int) *Ledger {
	if buffer < DefaultWatchBuffer {
		buffer = DefaultWatchBuffer
	}
	return &Ledger{
		latest: make(map[string]AckRecord),
		notify: eventbus.NewKeyed[string, AckRecord](buffer),
	}
}

// Record stores payload as the latest acknowledgment of id.
func (l *Ledger) Record(id string, payload json.RawMessage, at time.Time) {
	l.RecordAck(AckRecord{StationID: id, At: at, Payload: payload})
}

// RecordAck overwrites the latest record of rec.StationID and notifies
// waiters.
func (l *Ledger) RecordAck(rec AckRecord) {
	l.mu.Lock()
	l.latest[rec.StationID] = rec
	l.mu.Unlock()
	l.notify.Publish(rec.StationID, rec)
}

// HandleInbound classifies a raw station frame and records it when it is an
// acknowledgment. It returns the decoded frame.
func (l *Ledger) HandleInbound(id string, data []byte, at time.Time) (ocpp.Inbound, error) {
	in, err := ocpp.DecodeInbound(data)
	if err != nil {
		return in, err
	}
	if in.IsAck() {
		l.RecordAck(AckRecord{StationID: id, At: at, MessageID: in.MessageID, Payload: in.Raw})
	}
	return in, nil
}

// LatestSince returns the latest record of id if it arrived at or after since.
func (l *Ledger) LatestSince(id string, since time.Time) (AckRecord, bool) {
	l.mu.RLock()
	rec, ok := l.latest[id]
	l.mu.RUnlock()
	if !ok || rec.At.Before(since) {
		return AckRecord{}, false
	}
	return rec, true
}

// Watcher receives every acknowledgment of one station recorded after it
// was created. Stop must be called once it is no longer needed.
type Watcher struct {
	ledger *Ledger
	id     string
	sub    <-chan AckRecord
}

// Watch starts collecting the acknowledgments of id. Taking the watcher
// before sending a command guarantees that no reply to it is missed, even
// when other replies from the same station overwrite the latest record.
func (l *Ledger) Watch(id string) *Watcher {
	return &Watcher{ledger: l, id: id, sub: l.notify.Subscribe(id)}
}

// Wait blocks until a record arrived at or after since and satisfies match,
// or ctx is done. A nil match accepts any record.
func (w *Watcher) Wait(ctx context.Context, since time.Time, match func(AckRecord) bool) (AckRecord, bool) {
	accept := func(rec AckRecord) bool {
		return !rec.At.Before(since) && (match == nil || match(rec))
	}
	if rec, ok := w.ledger.LatestSince(w.id, since); ok && accept(rec) {
		return rec, true
	}
	for {
		select {
		case rec, ok := <-w.sub:
			if !ok {
				return AckRecord{}, false
			}
			if accept(rec) {
				return rec, true
			}
		case <-ctx.Done():
			return AckRecord{}, false
		}
	}
}

// Stop releases the subscription.
func (w *Watcher) Stop() { w.ledger.notify.Unsubscribe(w.id, w.sub) }

// Wait is Watch followed by Watcher.Wait. Replies recorded before the call
// are only seen through the latest record.
func (l *Ledger) Wait(ctx context.Context, id string, since time.Time, match func(AckRecord) bool) (AckRecord, bool) {
	w := l.Watch(id)
	defer w.Stop()
	return w.Wait(ctx, since, match)
}

// Close releases every waiter.
func (l *Ledger) Close() { l.notify.Close() }
