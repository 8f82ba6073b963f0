package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/model"
	"github.com/whatsdrip/dashboard/internal/service"
)

const multipartMemory = 32 << 20

type TemplateHandler struct {
	facade *service.Facade
	board  *service.CampaignBoard
}

func NewTemplateHandler(facade *service.Facade, board *service.CampaignBoard) *TemplateHandler {
	return &TemplateHandler{facade: facade, board: board}
}

func (h *TemplateHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/bulk", h.Bulk)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/media", h.UploadMedia)
	r.Delete("/{id}/media/{mediaId}", h.RemoveMedia)
	r.Post("/{id}/preview", h.Preview)
	r.Post("/{id}/test-send", h.TestSend)

	return r
}

// GET /v1/templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.facade.ListTemplates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if templates == nil {
		templates = []model.Template{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "templates": templates})
}

// POST /v1/templates
//
// Accepts JSON, or multipart form fields plus up to two "files".
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var (
		params model.CreateTemplateParams
		media  []model.MediaUpload
		err    error
	)

	if isMultipart(r) {
		params, media, err = parseTemplateForm(r)
	} else {
		err = decodeJSON(r, &params)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := h.facade.CreateTemplate(r.Context(), params, media)
	if err != nil {
		writeError(w, err)
		return
	}
	refreshBoard(r, h.board)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "template": created})
}

// PUT /v1/templates/{id}
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	var params model.UpdateTemplateParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.facade.UpdateTemplate(r.Context(), chi.URLParam(r, "id"), params)
	if err != nil {
		writeError(w, err)
		return
	}
	refreshBoard(r, h.board)
	writeJSON(w, http.StatusOK, resp)
}

// DELETE /v1/templates/{id}?confirm=true
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := requireConfirm(r, "template deletion"); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.facade.DeleteTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	refreshBoard(r, h.board)
	writeJSON(w, http.StatusOK, resp)
}

// POST /v1/templates/{id}/media
func (h *TemplateHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		writeError(w, apperrors.ValidationError("Expected multipart/form-data"))
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, apperrors.ValidationError("Invalid multipart form"))
		return
	}

	media, err := readUploads(r.MultipartForm.File["files"])
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.facade.UploadTemplateMedia(r.Context(), chi.URLParam(r, "id"), media)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DELETE /v1/templates/{id}/media/{mediaId}
func (h *TemplateHandler) RemoveMedia(w http.ResponseWriter, r *http.Request) {
	resp, err := h.facade.RemoveTemplateMedia(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "mediaId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /v1/templates/{id}/preview
func (h *TemplateHandler) Preview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.facade.PreviewTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// POST /v1/templates/{id}/test-send
func (h *TemplateHandler) TestSend(w http.ResponseWriter, r *http.Request) {
	var params model.TestSendParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.facade.TestSendTemplate(r.Context(), chi.URLParam(r, "id"), params.TestPhoneNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /v1/templates/bulk
func (h *TemplateHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var params model.BulkTemplateParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.facade.BulkTemplateOperation(r.Context(), params.Action, params.TemplateIDs, params.Data)
	if err != nil {
		writeError(w, err)
		return
	}
	refreshBoard(r, h.board)
	writeJSON(w, http.StatusOK, result)
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func parseTemplateForm(r *http.Request) (model.CreateTemplateParams, []model.MediaUpload, error) {
	var params model.CreateTemplateParams
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return params, nil, apperrors.ValidationError("Invalid multipart form")
	}

	params.Name = r.FormValue("name")
	params.Message = r.FormValue("message")
	params.IsActive = r.FormValue("isActive") == "true"

	if v := r.FormValue("day"); v != "" {
		day, err := strconv.Atoi(v)
		if err != nil {
			return params, nil, apperrors.InvalidInput("day", "must be a number")
		}
		params.Day = day
	}
	if v := r.FormValue("delayHours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			return params, nil, apperrors.InvalidInput("delayHours", "must be a number")
		}
		params.DelayHours = hours
	}

	media, err := readUploads(r.MultipartForm.File["files"])
	return params, media, err
}

func readUploads(headers []*multipart.FileHeader) ([]model.MediaUpload, error) {
	uploads := make([]model.MediaUpload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to read upload", err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to read upload", err)
		}

		uploads = append(uploads, model.MediaUpload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}
