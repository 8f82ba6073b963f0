package handler

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/whatsdrip/dashboard/internal/config"
	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/service"
	"github.com/whatsdrip/dashboard/internal/status"
)

type WhatsAppHandler struct {
	facade *service.Facade
	view   *status.View
	now    func() time.Time
}

func NewWhatsAppHandler(facade *service.Facade, view *status.View) *WhatsAppHandler {
	return &WhatsAppHandler{facade: facade, view: view, now: time.Now}
}

func (h *WhatsAppHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/connect", h.Connect)
	r.Post("/disconnect", h.Disconnect)
	r.Get("/status", h.Status)
	r.Get("/qr.png", h.QRCode)

	return r
}

type statusResponse struct {
	*status.ConnectionStatus
	QRRemainingSeconds int `json:"qrRemainingSeconds"`
}

// POST /v1/whatsapp/connect
func (h *WhatsAppHandler) Connect(w http.ResponseWriter, r *http.Request) {
	resp, err := h.facade.ConnectWhatsApp(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /v1/whatsapp/disconnect?confirm=true
func (h *WhatsAppHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := requireConfirm(r, "disconnect"); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.facade.DisconnectWhatsApp(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /v1/whatsapp/status[?refresh=true]
func (h *WhatsAppHandler) Status(w http.ResponseWriter, r *http.Request) {
	current := h.view.Current()
	if r.URL.Query().Get("refresh") == "true" {
		fresh, err := h.facade.GetWhatsAppStatus(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		current = fresh
	}
	if current == nil {
		current = &status.ConnectionStatus{State: status.StateDisconnected}
	}

	resp := statusResponse{ConnectionStatus: current}
	if current.State == status.StateWaitingQR && current.HasQR {
		resp.QRRemainingSeconds = int(current.QRRemaining(h.now(), config.QRCodeLifetime).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /v1/whatsapp/qr.png
func (h *WhatsAppHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	current := h.view.Current()
	if current == nil || !current.HasQR {
		writeError(w, apperrors.NotFound("QR code"))
		return
	}

	png, err := decodeQRCode(current.QRCode)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrCodeInvalidFormat, "QR code is not valid base64", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="whatsapp-qr-%d.png"`, h.now().UnixMilli()))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// decodeQRCode accepts bare base64 or a data: URL.
func decodeQRCode(encoded string) ([]byte, error) {
	if strings.HasPrefix(encoded, "data:") {
		if _, payload, ok := strings.Cut(encoded, ","); ok {
			encoded = payload
		}
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
}
