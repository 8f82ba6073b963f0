package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/whatsdrip/dashboard/internal/apiclient"
	"github.com/whatsdrip/dashboard/internal/config"
	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/model"
	"github.com/whatsdrip/dashboard/internal/notify"
	"github.com/whatsdrip/dashboard/internal/util"
)

const defaultTemplateDay = 1

func templatePath(id string, suffix ...string) string {
	parts := append([]string{pathTemplates, url.PathEscape(id)}, suffix...)
	return strings.Join(parts, "/")
}

func (f *Facade) ListTemplates(ctx context.Context) ([]model.Template, error) {
	var resp model.TemplateListResponse
	if err := f.call(ctx, "list templates", http.MethodGet, pathTemplates, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Templates, nil
}

type createTemplateBody struct {
	model.Template
	Message string `json:"message"`
}

// CreateTemplate validates and creates a template, then uploads media and
// records it on the template. A media failure leaves the template created
// and is reported as a notification.
func (f *Facade) CreateTemplate(ctx context.Context, params model.CreateTemplateParams, media []model.MediaUpload) (*model.Template, error) {
	if params.Day == 0 {
		params.Day = defaultTemplateDay
	}
	if err := ValidateTemplate(params, media); err != nil {
		return nil, err
	}

	now := f.nowMillis()
	tmpl := model.Template{
		ID:         util.NewID("template"),
		Name:       strings.TrimSpace(params.Name),
		Day:        params.Day,
		DelayHours: params.DelayHours,
		IsActive:   params.IsActive,
		Content: model.TemplateContent{
			Message: params.Message,
			Media:   []model.TemplateMedia{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx = apiclient.WithIdempotencyKey(ctx, util.NewIdempotencyKey())

	var resp model.TemplateResponse
	err := f.call(ctx, "create template", http.MethodPost, pathTemplates,
		createTemplateBody{Template: tmpl, Message: params.Message}, &resp)
	if err != nil {
		return nil, err
	}

	created := resp.Template
	if created.ID == "" {
		created = tmpl
	}

	if len(media) > 0 {
		updated, err := f.AttachMedia(ctx, created.ID, created.Content, media)
		if err != nil {
			f.notifier.Notify(ctx, notify.LevelError, "Template created but media upload failed")
		} else {
			created.Content = *updated
		}
	}

	f.notifier.Notify(ctx, notify.LevelSuccess, "Template created successfully!")
	return &created, nil
}

func (f *Facade) UpdateTemplate(ctx context.Context, id string, params model.UpdateTemplateParams) (*model.SuccessResponse, error) {
	if util.IsBlank(id) {
		return nil, apperrors.MissingRequired("templateId")
	}
	if params.Name != nil && strings.TrimSpace(*params.Name) == "" {
		return nil, apperrors.MissingRequired("name")
	}
	if params.Message != nil {
		if err := validateMessage(*params.Message); err != nil {
			return nil, err
		}
	}
	if params.Content != nil {
		if err := validateMessage(params.Content.Message); err != nil {
			return nil, err
		}
		if len(params.Content.Media) > config.MaxTemplateMedia {
			return nil, apperrors.InvalidInput("media", fmt.Sprintf("at most %d attachments", config.MaxTemplateMedia))
		}
	}
	params.UpdatedAt = f.nowMillis()

	var resp model.SuccessResponse
	if err := f.call(ctx, "update template", http.MethodPut, templatePath(id), params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *Facade) DeleteTemplate(ctx context.Context, id string) (*model.SuccessResponse, error) {
	if util.IsBlank(id) {
		return nil, apperrors.MissingRequired("templateId")
	}

	var resp model.SuccessResponse
	if err := f.call(ctx, "delete template", http.MethodDelete, templatePath(id), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Success {
		f.notifier.Notify(ctx, notify.LevelSuccess, "Template deleted successfully!")
	}
	return &resp, nil
}

// AttachMedia uploads files and appends them to content's media list on the
// template.
func (f *Facade) AttachMedia(ctx context.Context, id string, content model.TemplateContent, media []model.MediaUpload) (*model.TemplateContent, error) {
	if len(content.Media)+len(media) > config.MaxTemplateMedia {
		return nil, apperrors.InvalidInput("media", fmt.Sprintf("at most %d attachments", config.MaxTemplateMedia))
	}

	uploaded, err := f.UploadTemplateMedia(ctx, id, media)
	if err != nil {
		return nil, err
	}
	if !uploaded.Success {
		return nil, apperrors.Remote(0, "Media upload was not accepted", nil)
	}

	next := model.TemplateContent{
		Message: content.Message,
		Media:   append(append([]model.TemplateMedia{}, content.Media...), uploaded.Media...),
	}
	if _, err := f.UpdateTemplate(ctx, id, model.UpdateTemplateParams{Content: &next}); err != nil {
		return nil, err
	}
	return &next, nil
}

// UploadTemplateMedia sends files as multipart form data under "files".
// It bypasses the JSON client because the payload is binary.
func (f *Facade) UploadTemplateMedia(ctx context.Context, id string, media []model.MediaUpload) (*model.MediaUploadResponse, error) {
	if util.IsBlank(id) {
		return nil, apperrors.MissingRequired("templateId")
	}
	if len(media) == 0 {
		return nil, apperrors.MissingRequired("files")
	}
	if err := validateMedia(media); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, m := range media {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, m.FileName))
		header.Set("Content-Type", m.ContentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to encode upload", err)
		}
		if _, err := part.Write(m.Data); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to encode upload", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to encode upload", err)
	}

	resp, err := f.api.Do(ctx, http.MethodPost, templatePath(id, "media"), &buf, mw.FormDataContentType())
	if err != nil {
		log.Error().Err(err).Str("templateId", id).Msg("upload template media failed")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Remote(0, "Failed to read upload response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		remoteErr := apiclient.RemoteError(resp.StatusCode, body)
		log.Error().Err(remoteErr).Str("templateId", id).Msg("upload template media failed")
		f.notifier.Notify(ctx, notify.LevelError, remoteErr.Message)
		return nil, remoteErr
	}

	var out model.MediaUploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperrors.Remote(0, "Invalid response from backend", err)
	}

	log.Info().Str("templateId", id).Int("files", len(out.Media)).Msg("template media uploaded")
	return &out, nil
}

func (f *Facade) RemoveTemplateMedia(ctx context.Context, id, mediaID string) (*model.SuccessResponse, error) {
	if util.IsBlank(id) {
		return nil, apperrors.MissingRequired("templateId")
	}
	if util.IsBlank(mediaID) {
		return nil, apperrors.MissingRequired("mediaId")
	}

	var resp model.SuccessResponse
	if err := f.call(ctx, "remove template media", http.MethodDelete,
		templatePath(id, "media", url.PathEscape(mediaID)), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *Facade) PreviewTemplate(ctx context.Context, id string) (json.RawMessage, error) {
	if util.IsBlank(id) {
		return nil, apperrors.MissingRequired("templateId")
	}

	var preview json.RawMessage
	if err := f.call(ctx, "preview template", http.MethodPost, templatePath(id, "preview"), nil, &preview); err != nil {
		return nil, err
	}
	return preview, nil
}

func (f *Facade) TestSendTemplate(ctx context.Context, id, phone string) (*model.SuccessResponse, error) {
	if util.IsBlank(id) {
		return nil, apperrors.MissingRequired("templateId")
	}
	if util.IsBlank(phone) {
		return nil, apperrors.MissingRequired("testPhoneNumber")
	}

	var resp model.SuccessResponse
	if err := f.call(ctx, "test send template", http.MethodPost, templatePath(id, "test-send"),
		model.TestSendParams{TestPhoneNumber: phone}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *Facade) BulkTemplateOperation(ctx context.Context, action model.BulkAction, ids []string, data map[string]any) (json.RawMessage, error) {
	if action == "" {
		return nil, apperrors.MissingRequired("action")
	}
	if len(ids) == 0 {
		return nil, apperrors.MissingRequired("templateIds")
	}
	if data == nil {
		data = map[string]any{}
	}

	var result json.RawMessage
	if err := f.call(ctx, "bulk template operation", http.MethodPost, pathTemplates+"/bulk",
		model.BulkTemplateParams{Action: action, TemplateIDs: ids, Data: data}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ValidateTemplate checks what can be checked before calling the backend.
func ValidateTemplate(params model.CreateTemplateParams, media []model.MediaUpload) error {
	if util.IsBlank(params.Name) || util.IsBlank(params.Message) {
		return apperrors.ValidationError("Name and message are required")
	}
	if params.Day < 1 {
		return apperrors.InvalidInput("day", "must be 1 or greater")
	}
	if params.DelayHours < 0 {
		return apperrors.InvalidInput("delayHours", "must not be negative")
	}
	if err := validateMessage(params.Message); err != nil {
		return err
	}
	return validateMedia(media)
}

func validateMessage(message string) error {
	if utf8.RuneCountInString(message) > config.MaxMessageLength {
		return apperrors.InvalidInput("message", fmt.Sprintf("must be at most %d characters", config.MaxMessageLength))
	}
	return nil
}

func validateMedia(media []model.MediaUpload) error {
	if len(media) > config.MaxTemplateMedia {
		return apperrors.InvalidInput("media", fmt.Sprintf("at most %d attachments", config.MaxTemplateMedia))
	}
	for _, m := range media {
		if _, ok := model.MediaTypeFromContentType(m.ContentType); !ok {
			return apperrors.ValidationError("Only images, videos, and PDFs are allowed")
		}
		if len(m.Data) > config.MaxMediaSizeBytes {
			return apperrors.InvalidInput("media", fmt.Sprintf("%s exceeds 50MB", m.FileName))
		}
	}
	return nil
}
