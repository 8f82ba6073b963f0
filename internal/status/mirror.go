package status

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DocumentSource delivers push updates of one identity's status document.
// Watch blocks until ctx is cancelled or the stream fails, calling fn for
// every snapshot; exists is false when the document is absent.
type DocumentSource interface {
	Watch(ctx context.Context, uid string, fn func(data map[string]any, exists bool)) error
}

// Mirror keeps one push subscription open for the signed-in identity and
// feeds every snapshot into the view.
type Mirror struct {
	source     DocumentSource
	view       *View
	retryDelay time.Duration

	mu     sync.Mutex
	uid    string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMirror(source DocumentSource, view *View, retryDelay time.Duration) *Mirror {
	return &Mirror{
		source:     source,
		view:       view,
		retryDelay: retryDelay,
	}
}

// Open subscribes to uid's document, closing any previous subscription.
func (m *Mirror) Open(uid string) {
	m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.uid = uid
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.run(ctx, uid, done)

	log.Info().Str("uid", uid).Msg("status subscription opened")
}

// Close cancels the subscription and waits for it to stop.
func (m *Mirror) Close() {
	m.mu.Lock()
	cancel, done, uid := m.cancel, m.done, m.uid
	m.cancel, m.done, m.uid = nil, nil, ""
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	log.Info().Str("uid", uid).Msg("status subscription closed")
}

func (m *Mirror) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Mirror) UID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uid
}

func (m *Mirror) run(ctx context.Context, uid string, done chan struct{}) {
	defer close(done)

	for {
		err := m.source.Watch(ctx, uid, func(data map[string]any, exists bool) {
			if !exists {
				return
			}
			s := FromDocument(data)
			m.view.Apply(s)
			log.Debug().
				Str("uid", uid).
				Str("state", string(s.State)).
				Bool("hasQR", s.HasQR).
				Msg("status snapshot applied")
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Error().Err(err).Str("uid", uid).Msg("status subscription failed, retrying")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.retryDelay):
		}
	}
}
