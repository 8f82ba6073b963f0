package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/model"
	"github.com/whatsdrip/dashboard/internal/repository"
)

// SessionStorageKey holds the persisted provider session (user + refresh
// token) so a restart does not require signing in again.
const SessionStorageKey = "firebase:authUser"

// tokenExpiryLeeway treats a cached token as stale slightly before the
// provider would reject it.
const tokenExpiryLeeway = 5 * time.Minute

type FirebaseConfig struct {
	APIKey   string
	AuthURL  string
	TokenURL string
	Timeout  time.Duration
}

type persistedSession struct {
	User         model.Identity `json:"user"`
	RefreshToken string         `json:"refreshToken"`
}

// FirebaseProvider implements Provider against the Firebase Auth REST API.
type FirebaseProvider struct {
	cfg        FirebaseConfig
	httpClient *http.Client
	storage    repository.LocalStorageRepository
	now        func() time.Time

	mu           sync.Mutex
	user         *model.Identity
	idToken      string
	refreshToken string
	expiresAt    time.Time
	initialized  bool
	listeners    map[int]AuthStateListener
	nextID       int
}

func NewFirebaseProvider(cfg FirebaseConfig, storage repository.LocalStorageRepository) *FirebaseProvider {
	return &FirebaseProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		storage:    storage,
		now:        time.Now,
		listeners:  make(map[int]AuthStateListener),
	}
}

// Init restores a persisted session, if any, and reports the resulting state
// to every registered listener. A stored session the provider no longer
// accepts is discarded silently.
func (p *FirebaseProvider) Init(ctx context.Context) error {
	raw, ok, err := p.storage.Get(ctx, SessionStorageKey)
	if err != nil {
		return apperrors.Storage(err)
	}

	if ok {
		var saved persistedSession
		if err := json.Unmarshal([]byte(raw), &saved); err != nil || saved.RefreshToken == "" {
			log.Warn().Msg("discarding unreadable persisted identity session")
			p.forget(ctx)
		} else {
			p.mu.Lock()
			p.user = &saved.User
			p.refreshToken = saved.RefreshToken
			p.mu.Unlock()

			if _, err := p.refresh(ctx); err != nil {
				log.Info().Err(err).Str("uid", saved.User.UID).Msg("persisted identity session rejected")
				p.mu.Lock()
				p.clearLocked()
				p.mu.Unlock()
				p.forget(ctx)
			} else {
				log.Info().Str("uid", saved.User.UID).Msg("restored identity session")
			}
		}
	}

	p.mu.Lock()
	p.initialized = true
	p.mu.Unlock()

	p.emit()
	return nil
}

func (p *FirebaseProvider) OnAuthStateChanged(fn AuthStateListener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	initialized := p.initialized
	user := p.currentLocked()
	p.mu.Unlock()

	if initialized {
		fn(user)
	}

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *FirebaseProvider) CurrentUser() *model.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLocked()
}

func (p *FirebaseProvider) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	p.mu.Lock()
	if p.user == nil {
		p.mu.Unlock()
		return "", apperrors.NotSignedIn()
	}
	if !forceRefresh && p.idToken != "" && p.now().Add(tokenExpiryLeeway).Before(p.expiresAt) {
		token := p.idToken
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	return p.refresh(ctx)
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type lookupResponse struct {
	Users []struct {
		LocalID     string `json:"localId"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		PhotoURL    string `json:"photoUrl"`
	} `json:"users"`
}

func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*model.Identity, error) {
	if strings.TrimSpace(email) == "" {
		return nil, apperrors.MissingRequired("email")
	}
	if password == "" {
		return nil, apperrors.MissingRequired("password")
	}

	var resp signInResponse
	err := p.postJSON(ctx, p.authEndpoint("accounts:signInWithPassword"), map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	user := &model.Identity{
		UID:         resp.LocalID,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
	}

	var lookup lookupResponse
	if err := p.postJSON(ctx, p.authEndpoint("accounts:lookup"), map[string]string{
		"idToken": resp.IDToken,
	}, &lookup); err != nil {
		log.Warn().Err(err).Str("uid", user.UID).Msg("identity profile lookup failed")
	} else if len(lookup.Users) > 0 {
		user.DisplayName = lookup.Users[0].DisplayName
		user.PhotoURL = lookup.Users[0].PhotoURL
	}

	p.mu.Lock()
	p.user = user
	p.idToken = resp.IDToken
	p.refreshToken = resp.RefreshToken
	p.expiresAt = p.now().Add(parseExpiresIn(resp.ExpiresIn))
	p.initialized = true
	p.mu.Unlock()

	p.persist(ctx)
	log.Info().Str("uid", user.UID).Msg("identity signed in")

	p.emit()
	return user.Clone(), nil
}

func (p *FirebaseProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	wasSignedIn := p.user != nil
	p.clearLocked()
	p.mu.Unlock()

	p.forget(ctx)

	if wasSignedIn {
		log.Info().Msg("identity signed out")
		p.emit()
	}
	return nil
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

func (p *FirebaseProvider) refresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	refreshToken := p.refreshToken
	p.mu.Unlock()

	if refreshToken == "" {
		return "", apperrors.NotSignedIn()
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.withKey(p.cfg.TokenURL), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp refreshResponse
	if err := p.do(req, &resp); err != nil {
		return "", err
	}

	p.mu.Lock()
	if p.user == nil {
		p.mu.Unlock()
		return "", apperrors.NotSignedIn()
	}
	p.idToken = resp.IDToken
	if resp.RefreshToken != "" {
		p.refreshToken = resp.RefreshToken
	}
	p.expiresAt = p.now().Add(parseExpiresIn(resp.ExpiresIn))
	p.mu.Unlock()

	p.persist(ctx)
	return resp.IDToken, nil
}

func (p *FirebaseProvider) emit() {
	p.mu.Lock()
	user := p.currentLocked()
	listeners := make([]AuthStateListener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(user)
	}
}

func (p *FirebaseProvider) currentLocked() *model.Identity {
	if p.user == nil {
		return nil
	}
	return p.user.Clone()
}

func (p *FirebaseProvider) clearLocked() {
	p.user = nil
	p.idToken = ""
	p.refreshToken = ""
	p.expiresAt = time.Time{}
}

func (p *FirebaseProvider) persist(ctx context.Context) {
	p.mu.Lock()
	if p.user == nil {
		p.mu.Unlock()
		return
	}
	data, err := json.Marshal(persistedSession{User: *p.user, RefreshToken: p.refreshToken})
	p.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Msg("failed to encode identity session")
		return
	}

	if err := p.storage.Set(ctx, SessionStorageKey, string(data)); err != nil {
		log.Error().Err(err).Msg("failed to persist identity session")
	}
}

func (p *FirebaseProvider) forget(ctx context.Context) {
	if err := p.storage.Remove(ctx, SessionStorageKey); err != nil {
		log.Error().Err(err).Msg("failed to remove identity session")
	}
}

func (p *FirebaseProvider) authEndpoint(method string) string {
	return p.withKey(strings.TrimRight(p.cfg.AuthURL, "/") + "/" + method)
}

func (p *FirebaseProvider) withKey(endpoint string) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "key=" + url.QueryEscape(p.cfg.APIKey)
}

func (p *FirebaseProvider) postJSON(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode identity request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return p.do(req, out)
}

type providerError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *FirebaseProvider) do(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeUnauthorized, "Identity provider unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeUnauthorized, "Identity provider unreachable", err)
	}

	if resp.StatusCode != http.StatusOK {
		var perr providerError
		_ = json.Unmarshal(body, &perr)
		reason := perr.Error.Message
		if reason == "" {
			reason = resp.Status
		}
		return apperrors.Unauthorized(describeProviderError(reason)).WithDetails(map[string]any{
			"reason": reason,
			"status": resp.StatusCode,
		})
	}

	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, "Invalid identity provider response", err)
	}
	return nil
}

func describeProviderError(reason string) string {
	code, _, _ := strings.Cut(reason, " ")
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return "Invalid email or password"
	case "USER_DISABLED":
		return "This account has been disabled"
	case "TOKEN_EXPIRED", "INVALID_REFRESH_TOKEN", "USER_NOT_FOUND":
		return "Identity session is no longer valid"
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return "Too many attempts, try again later"
	default:
		return "Failed to sign in"
	}
}

func parseExpiresIn(raw string) time.Duration {
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return time.Hour
	}
	return time.Duration(secs) * time.Second
}
