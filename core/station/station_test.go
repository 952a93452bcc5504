package station

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	closed atomic.Bool
}

func (f *fakeConn) Send(context.Context, []byte) error { return nil }
func (f *fakeConn) Close() error                       { f.closed.Store(true); return nil }

func TestRegistryRegisterReplaces(t *testing.T) {
	reg := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	assert.Nil(t, reg.Register("cp-1", a))
	assert.Same(t, a, reg.Register("cp-1", b))
	c, ok := reg.Lookup("cp-1")
	require.True(t, ok)
	assert.Same(t, b, c)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryUnregisterUnknownIsNoop(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.SetObserver(func(int) { calls++ })
	reg.Unregister("missing")
	assert.Zero(t, calls)
	_, ok := reg.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryReleaseKeepsNewerHandle(t *testing.T) {
	reg := NewRegistry()
	old, cur := &fakeConn{}, &fakeConn{}
	reg.Register("cp-1", old)
	reg.Register("cp-1", cur)
	assert.False(t, reg.Release("cp-1", old))
	c, ok := reg.Lookup("cp-1")
	require.True(t, ok)
	assert.Same(t, cur, c)
	assert.True(t, reg.Release("cp-1", cur))
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryObserverAndCloseAll(t *testing.T) {
	reg := NewRegistry()
	var last int
	reg.SetObserver(func(n int) { last = n })
	a, b := &fakeConn{}, &fakeConn{}
	reg.Register("b", a)
	reg.Register("a", b)
	assert.Equal(t, 2, last)
	assert.Equal(t, []string{"a", "b"}, reg.IDs())
	reg.CloseAll()
	assert.Equal(t, 0, last)
	assert.True(t, a.closed.Load())
	assert.True(t, b.closed.Load())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := &fakeConn{}
			reg.Register("cp", c)
			reg.Release("cp", c)
		}()
		go func() {
			defer wg.Done()
			if c, ok := reg.Lookup("cp"); ok && c == nil {
				t.Errorf("lookup returned a nil handle")
			}
		}()
	}
	wg.Wait()
}

func TestLedgerLatestSince(t *testing.T) {
	l := NewLedger()
	t0 := time.Now()
	l.Record("cp-1", json.RawMessage(`{"type":"Ack"}`), t0)

	rec, ok := l.LatestSince("cp-1", t0)
	require.True(t, ok)
	assert.Equal(t, "cp-1", rec.StationID)

	_, ok = l.LatestSince("cp-1", t0.Add(time.Millisecond))
	assert.False(t, ok)
	_, ok = l.LatestSince("cp-2", time.Time{})
	assert.False(t, ok)
}

func TestLedgerRecordOverwrites(t *testing.T) {
	l := NewLedger()
	t0 := time.Now()
	l.Record("cp-1", json.RawMessage(`{"n":1}`), t0)
	l.Record("cp-1", json.RawMessage(`{"n":2}`), t0.Add(time.Second))
	rec, ok := l.LatestSince("cp-1", t0)
	require.True(t, ok)
	assert.JSONEq(t, `{"n":2}`, string(rec.Payload))
}

func TestLedgerWaitWakesOnAck(t *testing.T) {
	l := NewLedger()
	since := time.Now()
	go func() {
		time.Sleep(20 * time.Millisecond)
		l.Record("cp-1", json.RawMessage(`{"type":"Ack"}`), time.Now())
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	rec, ok := l.Wait(ctx, "cp-1", since, nil)
	require.True(t, ok)
	assert.Equal(t, "cp-1", rec.StationID)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLedgerWaitReturnsExistingRecord(t *testing.T) {
	l := NewLedger()
	since := time.Now()
	l.Record("cp-1", json.RawMessage(`{}`), since)
	_, ok := l.Wait(context.Background(), "cp-1", since, nil)
	assert.True(t, ok)
}

func TestLedgerWaitTimesOut(t *testing.T) {
	l := NewLedger()
	l.Record("cp-1", json.RawMessage(`{}`), time.Now().Add(-time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, ok := l.Wait(ctx, "cp-1", time.Now(), nil)
	assert.False(t, ok)
}

func TestLedgerWaitHonoursMatch(t *testing.T) {
	l := NewLedger()
	since := time.Now()
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.RecordAck(AckRecord{StationID: "cp-1", At: time.Now(), MessageID: "other"})
		time.Sleep(10 * time.Millisecond)
		l.RecordAck(AckRecord{StationID: "cp-1", At: time.Now(), MessageID: "want"})
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rec, ok := l.Wait(ctx, "cp-1", since, func(r AckRecord) bool { return r.MessageID == "want" })
	require.True(t, ok)
	assert.Equal(t, "want", rec.MessageID)
}

func TestLedgerHandleInbound(t *testing.T) {
	l := NewLedger()
	at := time.Now()
	in, err := l.HandleInbound("cp-1", []byte(`{"type":"Ack","messageId":"m1"}`), at)
	require.NoError(t, err)
	assert.True(t, in.IsAck())
	rec, ok := l.LatestSince("cp-1", at)
	require.True(t, ok)
	assert.Equal(t, "m1", rec.MessageID)

	_, err = l.HandleInbound("cp-2", []byte(`{"type":"Heartbeat"}`), at)
	require.NoError(t, err)
	_, ok = l.LatestSince("cp-2", time.Time{})
	assert.False(t, ok)

	_, err = l.HandleInbound("cp-3", []byte(`garbage`), at)
	assert.Error(t, err)
}

func TestWatcherKeepsRepliesOverwrittenBySiblings(t *testing.T) {
	l := NewLedger()
	defer l.Close()
	since := time.Now()
	first, second := l.Watch("cp-1"), l.Watch("cp-1")
	defer first.Stop()
	defer second.Stop()

	l.RecordAck(AckRecord{StationID: "cp-1", At: time.Now(), MessageID: "m-1"})
	l.RecordAck(AckRecord{StationID: "cp-1", At: time.Now(), MessageID: "m-2"})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	rec, ok := first.Wait(ctx, since, func(r AckRecord) bool { return r.MessageID == "m-1" })
	require.True(t, ok)
	assert.Equal(t, "m-1", rec.MessageID)
	rec, ok = second.Wait(ctx, since, func(r AckRecord) bool { return r.MessageID == "m-2" })
	require.True(t, ok)
	assert.Equal(t, "m-2", rec.MessageID)
}

func TestLedgerSizeHasFloor(t *testing.T) {
	l := NewLedgerSize(1)
	defer l.Close()
	w := l.Watch("cp-1")
	defer w.Stop()
	for i := 0; i < DefaultWatchBuffer; i++ {
		l.RecordAck(AckRecord{StationID: "cp-1", At: time.Now(), MessageID: fmt.Sprint(i)})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, ok := w.Wait(ctx, time.Time{}, func(r AckRecord) bool { return r.MessageID == "0" })
	assert.True(t, ok)
}
