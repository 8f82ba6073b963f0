package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/model"
	"github.com/whatsdrip/dashboard/internal/service"
	"github.com/whatsdrip/dashboard/internal/util"
)

var exportTypes = []string{
	string(model.ExportTypeContacts),
	string(model.ExportTypeMessages),
	string(model.ExportTypeCampaigns),
}

type DashboardHandler struct {
	facade *service.Facade
	cache  *service.DashboardCache
}

func NewDashboardHandler(facade *service.Facade, cache *service.DashboardCache) *DashboardHandler {
	return &DashboardHandler{facade: facade, cache: cache}
}

// GET /v1/dashboard[?refresh=true]
//
// Serves the cached snapshot unless a refresh is requested or nothing has
// been fetched yet.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	data, fetchedAt := h.cache.Get()
	if data == nil || r.URL.Query().Get("refresh") == "true" {
		fresh, err := h.facade.GetDashboardData(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		data = fresh
		_, fetchedAt = h.cache.Get()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   data.Success,
		"contacts":  data.Contacts,
		"stats":     data.Stats,
		"fetchedAt": fetchedAt.UnixMilli(),
	})
}

// GET /v1/dashboard/export/{type}
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "type")
	if !util.IsValidEnum(kind, exportTypes) {
		writeError(w, apperrors.InvalidInput("type", "must be one of contacts, messages, campaigns"))
		return
	}

	file, err := h.facade.DownloadExport(r.Context(), model.ExportType(kind))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	w.WriteHeader(http.StatusOK)
	w.Write(file.Data)
}

// GET /v1/analytics/{kind}
func (h *DashboardHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.facade.Analytics(r.Context(), chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GET /v1/settings
func (h *DashboardHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.facade.GetSettings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": settings})
}

// PUT /v1/settings
func (h *DashboardHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.Settings
	if err := decodeJSON(r, &settings); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.facade.UpdateSettings(r.Context(), settings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
