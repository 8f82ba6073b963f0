// Package session owns the operator's identity session: it reacts to the
// identity provider's auth-state stream and starts and stops everything that
// belongs to a signed-in operator.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/whatsdrip/dashboard/internal/audit"
	"github.com/whatsdrip/dashboard/internal/auth"
	"github.com/whatsdrip/dashboard/internal/config"
	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/identity"
	"github.com/whatsdrip/dashboard/internal/jobs"
	"github.com/whatsdrip/dashboard/internal/model"
	"github.com/whatsdrip/dashboard/internal/notify"
	"github.com/whatsdrip/dashboard/internal/sse"
	"github.com/whatsdrip/dashboard/internal/status"
)

type State string

const (
	StateLoading   State = "loading"
	StateSignedOut State = "signed_out"
	StateSignedIn  State = "signed_in"
)

const (
	messageSignedOut       = "Signed out successfully"
	messageQRExpired       = "QR Code expired. Please refresh connection."
	messageDashboardFailed = "Failed to load dashboard data"
)

// Backend is the subset of the façade the session drives on its own.
type Backend interface {
	Register(ctx context.Context) (*model.SuccessResponse, error)
	GetWhatsAppStatus(ctx context.Context) (*status.ConnectionStatus, error)
	GetDashboardData(ctx context.Context) (*model.DashboardData, error)
}

// Resetter is session-scoped state dropped on sign-out.
type Resetter interface {
	Clear()
}

// Timing holds the session's periodic intervals.
type Timing struct {
	TokenRefresh  time.Duration
	StatusPoll    time.Duration
	QRTick        time.Duration
	QRLifetime    time.Duration
	DashboardLoad time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		TokenRefresh:  config.TokenRefreshInterval,
		StatusPoll:    config.StatusPollInterval,
		QRTick:        config.QRCountdownInterval,
		QRLifetime:    config.QRCodeLifetime,
		DashboardLoad: config.DashboardLoadDelay,
	}
}

// SessionEvent is published to the UI on every sign-in and sign-out.
type SessionEvent struct {
	State State           `json:"state"`
	User  *model.Identity `json:"user,omitempty"`
}

type Manager struct {
	provider  identity.Provider
	tokens    *auth.TokenStore
	view      *status.View
	mirror    *status.Mirror
	backend   Backend
	notifier  notify.Notifier
	publisher notify.Publisher
	resets    []Resetter
	timing    Timing
	now       func() time.Time

	mu            sync.Mutex
	state         State
	user          *model.Identity
	generation    uint64
	refreshJob    *jobs.Job
	pollJob       *jobs.Job
	tickJob       *jobs.Job
	dashboard     *time.Timer
	sessionCancel context.CancelFunc
	unsubscribe   func()
}

func NewManager(
	provider identity.Provider,
	tokens *auth.TokenStore,
	view *status.View,
	mirror *status.Mirror,
	backend Backend,
	notifier notify.Notifier,
	publisher notify.Publisher,
	timing Timing,
	resets ...Resetter,
) *Manager {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Manager{
		provider:  provider,
		tokens:    tokens,
		view:      view,
		mirror:    mirror,
		backend:   backend,
		notifier:  notifier,
		publisher: publisher,
		resets:    resets,
		timing:    timing,
		now:       time.Now,
		state:     StateLoading,
	}
}

// Start subscribes to the provider's auth-state stream. The provider may
// deliver the current state before Start returns.
func (m *Manager) Start() {
	unsubscribe := m.provider.OnAuthStateChanged(m.handleAuthState)

	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()
}

// Stop unsubscribes from the provider and tears down the running session
// without signing out, so a persisted session survives a restart.
func (m *Manager) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	m.stopSession()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentIdentity returns the signed-in operator, or nil.
func (m *Manager) CurrentIdentity() *model.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user.Clone()
}

// ForceRefresh fetches a fresh token from the provider and makes it current.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	token, err := m.provider.IDToken(ctx, true)
	if err != nil {
		return "", err
	}
	if err := m.tokens.SetToken(ctx, token); err != nil {
		log.Warn().Err(err).Msg("refreshed token not persisted")
	}
	return token, nil
}

// Expire ends a session the backend no longer accepts.
func (m *Manager) Expire(ctx context.Context) {
	user := m.CurrentIdentity()
	if user != nil {
		audit.Log(ctx, audit.Event{Type: audit.EventSessionExpired, UID: user.UID, Token: m.tokens.Token()})
	}
	m.signOut(ctx)
}

// SignIn authenticates with email and password and registers the operator
// with the backend. A failed registration is logged; the operator stays
// signed in.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*model.Identity, error) {
	user, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventLoginFailure,
			Email:   email,
			Details: map[string]interface{}{"reason": apperrors.GetCode(err)},
		})
		return nil, err
	}

	audit.Log(ctx, audit.Event{Type: audit.EventLoginSuccess, UID: user.UID, Email: email})

	if _, err := m.backend.Register(ctx); err != nil {
		log.Warn().Err(err).Str("uid", user.UID).Msg("backend registration failed")
	}
	return user, nil
}

// Logout signs out of the provider and tears the session down. Calling it
// again is harmless.
func (m *Manager) Logout(ctx context.Context) {
	user := m.CurrentIdentity()
	m.signOut(ctx)

	if user != nil {
		audit.Log(ctx, audit.Event{Type: audit.EventLogout, UID: user.UID})
		m.notifier.Notify(ctx, notify.LevelSuccess, messageSignedOut)
	}
}

func (m *Manager) signOut(ctx context.Context) {
	if err := m.provider.SignOut(ctx); err != nil {
		log.Error().Err(err).Msg("provider sign-out failed")
	}
	// The provider's nil event normally triggers teardown already.
	m.teardown(ctx)
}

func (m *Manager) handleAuthState(user *model.Identity) {
	ctx := context.Background()
	if user == nil {
		m.teardown(ctx)
		return
	}

	m.mu.Lock()
	if m.state == StateSignedIn && m.user != nil && m.user.UID == user.UID {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	// A different operator replaces the current one.
	m.stopSession()

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.state = StateSignedIn
	m.user = user.Clone()
	m.mu.Unlock()

	token, err := m.ForceRefresh(ctx)
	if err != nil {
		log.Error().Err(err).Str("uid", user.UID).Msg("initial token fetch failed")
		audit.Log(ctx, audit.Event{Type: audit.EventTokenRefreshFailed, UID: user.UID})
		m.signOut(ctx)
		return
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return
	}
	m.startSessionLocked(gen, user.UID)
	m.mu.Unlock()

	audit.Log(ctx, audit.Event{Type: audit.EventSessionStarted, UID: user.UID, Token: token})
	m.publish(ctx, SessionEvent{State: StateSignedIn, User: user.Clone()})
}

func (m *Manager) startSessionLocked(gen uint64, uid string) {
	sessionCtx, cancel := context.WithCancel(context.Background())
	m.sessionCancel = cancel

	m.refreshJob = jobs.New("token-refresh", m.timing.TokenRefresh,
		func(ctx context.Context) error {
			_, err := m.ForceRefresh(ctx)
			return err
		},
		jobs.StopOnError(func(err error) { m.onRefreshFailure(uid, err) }),
	)

	m.pollJob = jobs.New("status-poll", m.timing.StatusPoll, func(ctx context.Context) error {
		if !m.view.State().IsPending() {
			return nil
		}
		_, err := m.backend.GetWhatsAppStatus(ctx)
		return err
	})

	m.tickJob = jobs.New("qr-countdown", m.timing.QRTick, func(ctx context.Context) error {
		if m.view.Tick(m.now(), m.timing.QRLifetime) {
			m.notifier.Notify(ctx, notify.LevelError, messageQRExpired)
		}
		return nil
	})

	m.mirror.Open(uid)
	m.refreshJob.Start()
	m.pollJob.Start()
	m.tickJob.Start()

	m.dashboard = time.AfterFunc(m.timing.DashboardLoad, func() {
		m.loadDashboard(sessionCtx, gen)
	})

	log.Info().Str("uid", uid).Msg("session started")
}

func (m *Manager) onRefreshFailure(uid string, err error) {
	ctx := context.Background()
	audit.Log(ctx, audit.Event{
		Type:    audit.EventTokenRefreshFailed,
		UID:     uid,
		Details: map[string]interface{}{"error": err},
	})
	m.notifier.Notify(ctx, notify.LevelError, apperrors.MessageSessionExpired)
	m.Logout(ctx)
}

// loadDashboard fetches dashboard data once. An auth-required failure gets
// one forced token refresh and one retry.
func (m *Manager) loadDashboard(ctx context.Context, gen uint64) {
	_, err := m.backend.GetDashboardData(ctx)
	if apperrors.HasCode(err, apperrors.ErrCodeAuthRequired) {
		if _, refreshErr := m.ForceRefresh(ctx); refreshErr != nil {
			err = refreshErr
		} else {
			_, err = m.backend.GetDashboardData(ctx)
		}
	}
	if err == nil || ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	current := m.generation == gen
	m.mu.Unlock()
	if !current {
		return
	}

	log.Error().Err(err).Msg("dashboard load failed")
	m.notifier.Notify(ctx, notify.LevelError, messageDashboardFailed)
}

// teardown clears everything a session holds. It runs for every sign-out
// event, so it must tolerate running twice.
func (m *Manager) teardown(ctx context.Context) {
	m.mu.Lock()
	wasSignedIn := m.state == StateSignedIn
	m.state = StateSignedOut
	m.user = nil
	m.generation++
	m.mu.Unlock()

	m.stopSession()

	if err := m.tokens.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("failed to clear stored token")
	}
	m.view.Clear()
	for _, r := range m.resets {
		r.Clear()
	}

	if wasSignedIn {
		log.Info().Msg("session ended")
		m.publish(ctx, SessionEvent{State: StateSignedOut})
	}
}

// stopSession stops the jobs, timer and subscription of the running
// session, if any.
func (m *Manager) stopSession() {
	m.mu.Lock()
	refreshJob, pollJob, tickJob := m.refreshJob, m.pollJob, m.tickJob
	timer, cancel := m.dashboard, m.sessionCancel
	m.refreshJob, m.pollJob, m.tickJob = nil, nil, nil
	m.dashboard, m.sessionCancel = nil, nil
	m.mu.Unlock()

	for _, j := range []*jobs.Job{refreshJob, pollJob, tickJob} {
		if j != nil {
			j.Stop()
		}
	}
	if timer != nil {
		timer.Stop()
	}
	if cancel != nil {
		cancel()
	}
	m.mirror.Close()
}

// Running reports whether the session's refresh job is live and the
// status subscription is open for the signed-in operator.
func (m *Manager) Running() bool {
	m.mu.Lock()
	refreshJob := m.refreshJob
	user := m.user
	m.mu.Unlock()
	if refreshJob == nil || !refreshJob.Running() || user == nil {
		return false
	}
	return m.mirror.IsOpen() && m.mirror.UID() == user.UID
}

func (m *Manager) publish(ctx context.Context, event SessionEvent) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishJSON(context.WithoutCancel(ctx), sse.DefaultTopic, sse.EventSession, event); err != nil {
		log.Warn().Err(err).Msg("failed to publish session event")
	}
}
