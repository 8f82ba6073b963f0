package status

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	updates  chan map[string]any
	watching atomic.Int32
	watched  []string
	failOnce atomic.Bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{updates: make(chan map[string]any, 10)}
}

func (f *fakeSource) Watch(ctx context.Context, uid string, fn func(map[string]any, bool)) error {
	f.mu.Lock()
	f.watched = append(f.watched, uid)
	f.mu.Unlock()

	if f.failOnce.CompareAndSwap(true, false) {
		return errors.New("stream reset")
	}

	f.watching.Add(1)
	defer f.watching.Add(-1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-f.updates:
			fn(data, data != nil)
		}
	}
}

func (f *fakeSource) watchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watched)
}

func TestMirror_AppliesSnapshots(t *testing.T) {
	source := newFakeSource()
	view := NewView()
	mirror := NewMirror(source, view, 10*time.Millisecond)

	mirror.Open("uid-1")
	defer mirror.Close()

	assert.True(t, mirror.IsOpen())
	assert.Equal(t, "uid-1", mirror.UID())

	source.updates <- map[string]any{
		"connectionState": "waiting_qr",
		"qrCode":          "AAAA",
		"qrCodeTimestamp": time.Now(),
	}

	require.Eventually(t, func() bool {
		return view.State() == StateWaitingQR
	}, time.Second, 5*time.Millisecond)
	assert.True(t, view.Current().HasQR)

	source.updates <- nil
	source.updates <- map[string]any{"isConnected": true, "connectionState": "connected"}

	require.Eventually(t, func() bool {
		return view.State() == StateConnected
	}, time.Second, 5*time.Millisecond)
}

func TestMirror_CloseStopsSubscription(t *testing.T) {
	source := newFakeSource()
	mirror := NewMirror(source, NewView(), 10*time.Millisecond)

	mirror.Open("uid-1")
	require.Eventually(t, func() bool {
		return source.watching.Load() == 1
	}, time.Second, 5*time.Millisecond)

	mirror.Close()

	assert.Equal(t, int32(0), source.watching.Load())
	assert.False(t, mirror.IsOpen())
	assert.Equal(t, "", mirror.UID())

	mirror.Close()
}

func TestMirror_ReopenReplacesSubscription(t *testing.T) {
	source := newFakeSource()
	mirror := NewMirror(source, NewView(), 10*time.Millisecond)

	mirror.Open("uid-1")
	mirror.Open("uid-2")
	defer mirror.Close()

	require.Eventually(t, func() bool {
		return source.watching.Load() == 1 && source.watchCount() >= 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "uid-2", mirror.UID())
}

func TestMirror_RetriesFailedStream(t *testing.T) {
	source := newFakeSource()
	source.failOnce.Store(true)
	mirror := NewMirror(source, NewView(), 10*time.Millisecond)

	mirror.Open("uid-1")
	defer mirror.Close()

	require.Eventually(t, func() bool {
		return source.watchCount() == 2 && source.watching.Load() == 1
	}, time.Second, 5*time.Millisecond)
}
