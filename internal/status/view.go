package status

import (
	"sync"
	"time"
)

// View holds the current ConnectionStatus. The push subscription and the
// status poll both write here; whichever lands last wins, with no ordering
// between them.
type View struct {
	mu        sync.RWMutex
	status    *ConnectionStatus
	expiredQR *time.Time
	listeners []func(*ConnectionStatus)
}

func NewView() *View {
	return &View{}
}

// OnChange registers fn to run after every mutation, outside the lock.
// fn receives nil when the view is cleared.
func (v *View) OnChange(fn func(*ConnectionStatus)) {
	v.mu.Lock()
	v.listeners = append(v.listeners, fn)
	v.mu.Unlock()
}

// Current returns a copy, or nil when no status has been received.
func (v *View) Current() *ConnectionStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.copyLocked()
}

func (v *View) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.status == nil {
		return StateDisconnected
	}
	return v.status.State
}

// Apply replaces the status with a full snapshot.
func (v *View) Apply(s ConnectionStatus) {
	s.HasQR = s.QRCode != ""
	v.update(func(*ConnectionStatus) *ConnectionStatus { return &s })
}

// Merge overlays a partial backend status response onto the current status.
func (v *View) Merge(payload map[string]any) {
	v.update(func(prev *ConnectionStatus) *ConnectionStatus {
		base := ConnectionStatus{State: StateDisconnected}
		if prev != nil {
			base = *prev
		}
		next := mergePayload(base, payload)
		return &next
	})
}

// MarkDisconnected is the optimistic update after a successful disconnect.
func (v *View) MarkDisconnected() {
	v.update(func(prev *ConnectionStatus) *ConnectionStatus {
		next := ConnectionStatus{}
		if prev != nil {
			next = *prev
		}
		next.Connected = false
		next.State = StateDisconnected
		next.QRCode = ""
		next.HasQR = false
		return &next
	})
}

func (v *View) Clear() {
	v.update(func(*ConnectionStatus) *ConnectionStatus { return nil })
}

// Tick enforces the client-side QR lifetime. A waiting_qr status whose QR is
// at least lifetime old becomes disconnected with the QR cleared. Tick
// reports whether it expired the QR on this call.
func (v *View) Tick(now time.Time, lifetime time.Duration) bool {
	v.mu.Lock()
	s := v.status
	if s == nil || s.State != StateWaitingQR || s.QRCodeTimestamp == nil || s.QRAge(now) < lifetime {
		v.mu.Unlock()
		return false
	}

	next := expire(*s)
	v.status = &next
	v.expiredQR = s.QRCodeTimestamp
	snapshot := v.copyLocked()
	listeners := v.listeners
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return true
}

func (v *View) update(fn func(prev *ConnectionStatus) *ConnectionStatus) {
	v.mu.Lock()
	next := fn(v.copyLocked())
	if next == nil {
		v.expiredQR = nil
	} else if v.isExpiredQR(next) {
		// A QR already expired locally stays expired until a new one arrives.
		expired := expire(*next)
		next = &expired
	}
	v.status = next
	snapshot := v.copyLocked()
	listeners := v.listeners
	v.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

func (v *View) copyLocked() *ConnectionStatus {
	if v.status == nil {
		return nil
	}
	c := *v.status
	return &c
}

func (v *View) isExpiredQR(s *ConnectionStatus) bool {
	return v.expiredQR != nil && s.State == StateWaitingQR &&
		s.QRCodeTimestamp != nil && s.QRCodeTimestamp.Equal(*v.expiredQR)
}

func expire(s ConnectionStatus) ConnectionStatus {
	s.State = StateDisconnected
	s.Connected = false
	s.QRCode = ""
	s.HasQR = false
	s.QRExpired = true
	return s
}
