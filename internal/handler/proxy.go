package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/whatsdrip/dashboard/internal/middleware"
)

// ProxyHandler forwards browser calls that carry the caller's own bearer
// token straight to the backend.
type ProxyHandler struct {
	backendURL string
	client     *http.Client
}

func NewProxyHandler(backendURL string, client *http.Client) *ProxyHandler {
	if client == nil {
		client = http.DefaultClient
	}
	return &ProxyHandler{backendURL: backendURL, client: client}
}

func (h *ProxyHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireBearer)

	r.Delete("/enhanced-campaign/campaigns/{id}/remove-template/{day}", h.RemoveTemplate)

	return r
}

// DELETE /api/enhanced-campaign/campaigns/{id}/remove-template/{day}
func (h *ProxyHandler) RemoveTemplate(w http.ResponseWriter, r *http.Request) {
	target := fmt.Sprintf("%s/api/enhanced-campaign/campaigns/%s/remove-template/%s",
		h.backendURL,
		url.PathEscape(chi.URLParam(r, "id")),
		url.PathEscape(chi.URLParam(r, "day")))

	req, err := http.NewRequestWithContext(r.Context(), http.MethodDelete, target, nil)
	if err != nil {
		h.internalError(w, err)
		return
	}
	req.Header.Set("Authorization", "Bearer "+middleware.GetBearerToken(r.Context()))
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.internalError(w, err)
		return
	}
	defer resp.Body.Close()

	var data any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		h.internalError(w, err)
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg string
		if body, ok := data.(map[string]any); ok {
			msg, _ = body["error"].(string)
		}
		if msg == "" {
			msg = "Failed to remove template"
		}
		writeJSON(w, resp.StatusCode, map[string]string{"error": msg})
		return
	}

	writeJSON(w, http.StatusOK, data)
}

func (h *ProxyHandler) internalError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("remove template proxy failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}
