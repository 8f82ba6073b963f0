package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/whatsdrip/dashboard/internal/model"
	"github.com/whatsdrip/dashboard/internal/service"
)

type CampaignHandler struct {
	facade *service.Facade
	board  *service.CampaignBoard
}

func NewCampaignHandler(facade *service.Facade, board *service.CampaignBoard) *CampaignHandler {
	return &CampaignHandler{facade: facade, board: board}
}

func (h *CampaignHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/board", h.Board)
	r.Post("/bulk", h.Bulk)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/assign-template", h.AssignTemplate)
	r.Delete("/{id}/days/{day}", h.UnassignTemplate)
	r.Get("/{id}/analytics", h.Analytics)
	r.Get("/{id}/journeys", h.Journeys)
	r.Post("/{id}/journeys", h.StartJourney)

	return r
}

// GET /v1/campaigns
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.facade.ListCampaigns(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if campaigns == nil {
		campaigns = []model.Campaign{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "campaigns": campaigns})
}

// POST /v1/campaigns
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params model.CreateCampaignParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.facade.CreateCampaign(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	refreshBoard(r, h.board)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "campaign": created})
}

// PUT /v1/campaigns/{id}
func (h *CampaignHandler) Update(w http.ResponseWriter, r *http.Request) {
	var params model.UpdateCampaignParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.facade.UpdateCampaign(r.Context(), chi.URLParam(r, "id"), params)
	if err != nil {
		writeError(w, err)
		return
	}
	refreshBoard(r, h.board)
	writeJSON(w, http.StatusOK, resp)
}

// DELETE /v1/campaigns/{id}?confirm=true
func (h *CampaignHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := requireConfirm(r, "campaign deletion"); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.facade.DeleteCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	refreshBoard(r, h.board)
	writeJSON(w, http.StatusOK, resp)
}

// GET /v1/campaigns/board[?reload=true]
func (h *CampaignHandler) Board(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("reload") == "true" || len(h.board.Campaigns()) == 0 {
		if err := h.board.Load(r.Context()); err != nil {
			writeError(w, err)
			return
		}
	}
	h.writeBoard(w)
}

// POST /v1/campaigns/{id}/assign-template
func (h *CampaignHandler) AssignTemplate(w http.ResponseWriter, r *http.Request) {
	var req model.AssignTemplateParams
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.board.Assign(r.Context(), chi.URLParam(r, "id"), req.Day, req.TemplateID); err != nil {
		writeError(w, err)
		return
	}
	h.writeCampaign(w, chi.URLParam(r, "id"))
}

// DELETE /v1/campaigns/{id}/days/{day}
func (h *CampaignHandler) UnassignTemplate(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.board.Unassign(r.Context(), chi.URLParam(r, "id"), day); err != nil {
		writeError(w, err)
		return
	}
	h.writeCampaign(w, chi.URLParam(r, "id"))
}

// GET /v1/campaigns/{id}/analytics
func (h *CampaignHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.facade.GetCampaignAnalytics(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GET /v1/campaigns/{id}/journeys
func (h *CampaignHandler) Journeys(w http.ResponseWriter, r *http.Request) {
	journeys, err := h.facade.GetCampaignJourneys(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, journeys)
}

// POST /v1/campaigns/{id}/journeys
func (h *CampaignHandler) StartJourney(w http.ResponseWriter, r *http.Request) {
	var params model.StartJourneyParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.facade.StartUserJourney(r.Context(), chi.URLParam(r, "id"), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /v1/campaigns/bulk
func (h *CampaignHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var params model.BulkCampaignParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.facade.BulkCampaignOperation(r.Context(), params.Action, params.CampaignIDs, params.Data)
	if err != nil {
		writeError(w, err)
		return
	}
	refreshBoard(r, h.board)
	writeJSON(w, http.StatusOK, result)
}

func (h *CampaignHandler) writeBoard(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{
		"templates":    h.board.Templates(),
		"campaigns":    h.board.Campaigns(),
		"loadingCells": h.board.LoadingCells(),
	})
}

func (h *CampaignHandler) writeCampaign(w http.ResponseWriter, id string) {
	campaign, ok := h.board.Campaign(id)
	if !ok {
		// Assignment went through but the board was never loaded.
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "campaign": campaign})
}

// refreshBoard brings the board in line with the backend after a campaign or
// template mutation. The mutation already succeeded, so a failed reload is
// only logged.
func refreshBoard(r *http.Request, board *service.CampaignBoard) {
	if board == nil {
		return
	}
	if err := board.Refresh(r.Context()); err != nil {
		log.Warn().Err(err).Msg("campaign board refresh failed")
	}
}
