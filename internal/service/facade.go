package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/model"
	"github.com/whatsdrip/dashboard/internal/notify"
	"github.com/whatsdrip/dashboard/internal/status"
)

// Backend paths.
const (
	pathRegister           = "/api/auth/register"
	pathWhatsAppConnect    = "/api/whatsapp/connect"
	pathWhatsAppDisconnect = "/api/whatsapp/disconnect"
	pathWhatsAppStatus     = "/api/whatsapp/status"
	pathDashboard          = "/api/dashboard"
	pathSettings           = "/api/settings"
	pathTemplates          = "/api/enhanced-campaign/templates"
	pathCampaigns          = "/api/enhanced-campaign/campaigns"
	pathExport             = "/api/dashboard/export/"
)

// Analytics report kinds and their backend paths.
var analyticsPaths = map[string]string{
	"campaigns": "/api/dashboard/campaigns/performance",
	"templates": "/api/dashboard/templates/analytics",
	"contacts":  "/api/dashboard/contacts/analytics",
	"health":    "/api/dashboard/health",
	"realtime":  "/api/dashboard/realtime",
}

// API is the authenticated backend client.
type API interface {
	Call(ctx context.Context, method, path string, body, out any) error
	Do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error)
}

// Facade is the catalog of backend operations. Each one shapes a request,
// sends it through the API client and, on failure, logs and returns the
// error so the caller decides what the operator sees.
type Facade struct {
	api       API
	view      *status.View
	dashboard *DashboardCache
	notifier  notify.Notifier
	now       func() time.Time
}

func NewFacade(api API, view *status.View, dashboard *DashboardCache, notifier notify.Notifier) *Facade {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Facade{
		api:       api,
		view:      view,
		dashboard: dashboard,
		notifier:  notifier,
		now:       time.Now,
	}
}

func (f *Facade) call(ctx context.Context, op, method, path string, body, out any) error {
	if err := f.api.Call(ctx, method, path, body, out); err != nil {
		log.Error().Err(err).Str("op", op).Str("path", path).Msg("backend call failed")
		return err
	}
	return nil
}

func (f *Facade) Register(ctx context.Context) (*model.SuccessResponse, error) {
	var resp model.SuccessResponse
	if err := f.call(ctx, "register", http.MethodPost, pathRegister, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *Facade) ConnectWhatsApp(ctx context.Context) (*model.SuccessResponse, error) {
	var resp model.SuccessResponse
	if err := f.call(ctx, "connect whatsapp", http.MethodPost, pathWhatsAppConnect, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Success {
		f.notifier.Notify(ctx, notify.LevelSuccess, "WhatsApp connection initiated")
	}
	return &resp, nil
}

// DisconnectWhatsApp optimistically marks the view disconnected once the
// backend accepts the request.
func (f *Facade) DisconnectWhatsApp(ctx context.Context) (*model.SuccessResponse, error) {
	var resp model.SuccessResponse
	if err := f.call(ctx, "disconnect whatsapp", http.MethodPost, pathWhatsAppDisconnect, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Success {
		f.view.MarkDisconnected()
		f.notifier.Notify(ctx, notify.LevelSuccess, "WhatsApp disconnected")
	}
	return &resp, nil
}

// GetWhatsAppStatus polls the backend and merges the answer into the view.
func (f *Facade) GetWhatsAppStatus(ctx context.Context) (*status.ConnectionStatus, error) {
	var payload map[string]any
	if err := f.call(ctx, "whatsapp status", http.MethodGet, pathWhatsAppStatus, nil, &payload); err != nil {
		return nil, err
	}
	f.view.Merge(payload)
	return f.view.Current(), nil
}

func (f *Facade) GetDashboardData(ctx context.Context) (*model.DashboardData, error) {
	var data model.DashboardData
	if err := f.call(ctx, "dashboard", http.MethodGet, pathDashboard, nil, &data); err != nil {
		return nil, err
	}
	f.dashboard.Set(&data)
	return &data, nil
}

func (f *Facade) GetSettings(ctx context.Context) (*model.Settings, error) {
	var resp model.SettingsResponse
	if err := f.call(ctx, "get settings", http.MethodGet, pathSettings, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Settings, nil
}

func (f *Facade) UpdateSettings(ctx context.Context, settings model.Settings) (*model.SuccessResponse, error) {
	if settings.MessageDelay < 0 || settings.LanguageTimeout < 0 || settings.DemoTimeout < 0 {
		return nil, apperrors.InvalidInput("settings", "timeouts must not be negative")
	}

	var resp model.SuccessResponse
	if err := f.call(ctx, "update settings", http.MethodPost, pathSettings, settings, &resp); err != nil {
		return nil, err
	}
	if resp.Success {
		f.notifier.Notify(ctx, notify.LevelSuccess, "Settings saved")
	}
	return &resp, nil
}

// Analytics fetches one read-only report. kind is one of campaigns,
// templates, contacts, health or realtime.
func (f *Facade) Analytics(ctx context.Context, kind string) (json.RawMessage, error) {
	path, ok := analyticsPaths[kind]
	if !ok {
		return nil, apperrors.InvalidInput("kind", "unknown analytics report")
	}

	var report json.RawMessage
	if err := f.call(ctx, kind+" analytics", http.MethodGet, path, nil, &report); err != nil {
		return nil, err
	}
	return report, nil
}

func (f *Facade) GetDetailedAnalytics(ctx context.Context) (json.RawMessage, error) {
	return f.Analytics(ctx, "campaigns")
}

func (f *Facade) GetTemplateAnalytics(ctx context.Context) (json.RawMessage, error) {
	return f.Analytics(ctx, "templates")
}

func (f *Facade) GetContactAnalytics(ctx context.Context) (json.RawMessage, error) {
	return f.Analytics(ctx, "contacts")
}

func (f *Facade) GetSystemHealth(ctx context.Context) (json.RawMessage, error) {
	return f.Analytics(ctx, "health")
}

func (f *Facade) GetRealTimeStats(ctx context.Context) (json.RawMessage, error) {
	return f.Analytics(ctx, "realtime")
}

func (f *Facade) nowMillis() int64 {
	return f.now().UnixMilli()
}
