package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/model"
)

func TestValidateTemplate(t *testing.T) {
	valid := model.CreateTemplateParams{Name: "Welcome", Day: 1, Message: "Hello!"}

	tests := []struct {
		name   string
		params model.CreateTemplateParams
		media  []model.MediaUpload
		code   apperrors.ErrorCode
	}{
		{name: "valid", params: valid},
		{name: "blank name", params: model.CreateTemplateParams{Name: "  ", Day: 1, Message: "hi"}, code: apperrors.ErrCodeValidation},
		{name: "blank message", params: model.CreateTemplateParams{Name: "x", Day: 1}, code: apperrors.ErrCodeValidation},
		{name: "day zero", params: model.CreateTemplateParams{Name: "x", Message: "hi"}, code: apperrors.ErrCodeInvalidInput},
		{name: "negative delay", params: model.CreateTemplateParams{Name: "x", Day: 2, DelayHours: -1, Message: "hi"}, code: apperrors.ErrCodeInvalidInput},
		{name: "message too long", params: model.CreateTemplateParams{Name: "x", Day: 1, Message: strings.Repeat("é", 4097)}, code: apperrors.ErrCodeInvalidInput},
		{
			name:   "too many media",
			params: valid,
			media: []model.MediaUpload{
				{FileName: "a.png", ContentType: "image/png"},
				{FileName: "b.png", ContentType: "image/png"},
				{FileName: "c.png", ContentType: "image/png"},
			},
			code: apperrors.ErrCodeInvalidInput,
		},
		{
			name:   "unsupported media type",
			params: valid,
			media:  []model.MediaUpload{{FileName: "a.zip", ContentType: "application/zip"}},
			code:   apperrors.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTemplate(tt.params, tt.media)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.code, apperrors.GetCode(err))
		})
	}

	t.Run("4096 characters is accepted", func(t *testing.T) {
		params := valid
		params.Message = strings.Repeat("é", 4096)
		assert.NoError(t, ValidateTemplate(params, nil))
	})
}

func TestFacade_CreateTemplate(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults day and sends idempotency key", func(t *testing.T) {
		env := newFacadeEnv()
		env.api.on(http.MethodPost, pathTemplates, `{"success":true}`)

		created, err := env.facade.CreateTemplate(ctx, model.CreateTemplateParams{Name: " Welcome ", Message: "Hi"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, created.Day)
		assert.Equal(t, "Welcome", created.Name)
		assert.True(t, strings.HasPrefix(created.ID, "template_"))
		assert.Equal(t, int64(1772357400000), created.CreatedAt)

		calls := env.api.allCalls()
		require.Len(t, calls, 1)
		assert.NotEmpty(t, calls[0].IdempotencyKey)

		var body map[string]any
		require.NoError(t, json.Unmarshal([]byte(calls[0].Body), &body))
		assert.Equal(t, "Hi", body["message"])
		assert.Equal(t, created.ID, body["id"])
		assert.Equal(t, []string{"success: Template created successfully!"}, env.notifier.all())
	})

	t.Run("validation error makes no request", func(t *testing.T) {
		env := newFacadeEnv()

		_, err := env.facade.CreateTemplate(ctx, model.CreateTemplateParams{Name: "x"}, nil)
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
		assert.Empty(t, env.api.allCalls())
	})

	t.Run("uploads media then records it on the template", func(t *testing.T) {
		env := newFacadeEnv()
		env.api.on(http.MethodPost, pathTemplates, `{"success":true,"template":{"id":"tmpl_1","name":"Welcome","day":1,"content":{"message":"Hi","media":[]}}}`)
		env.api.on(http.MethodPut, pathTemplates+"/tmpl_1", `{"success":true}`)

		var fileNames []string
		env.api.doFunc = func(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
			assert.Equal(t, pathTemplates+"/tmpl_1/media", path)
			_, params, err := mime.ParseMediaType(contentType)
			require.NoError(t, err)

			reader := multipart.NewReader(body, params["boundary"])
			for {
				part, err := reader.NextPart()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				assert.Equal(t, "files", part.FormName())
				fileNames = append(fileNames, part.FileName())
			}
			return recordedResponse(http.StatusOK, nil,
				`{"success":true,"media":[{"id":"m1","type":"image","url":"https://cdn/x.png"}]}`), nil
		}

		created, err := env.facade.CreateTemplate(ctx,
			model.CreateTemplateParams{Name: "Welcome", Day: 1, Message: "Hi"},
			[]model.MediaUpload{{FileName: "x.png", ContentType: "image/png", Data: []byte("png")}})
		require.NoError(t, err)

		assert.Equal(t, []string{"x.png"}, fileNames)
		require.Len(t, created.Content.Media, 1)
		assert.Equal(t, "m1", created.Content.Media[0].ID)

		calls := env.api.allCalls()
		require.Len(t, calls, 3)
		assert.Equal(t, http.MethodPut, calls[2].Method)
		assert.Contains(t, calls[2].Body, `"id":"m1"`)
	})

	t.Run("media failure keeps the template", func(t *testing.T) {
		env := newFacadeEnv()
		env.api.on(http.MethodPost, pathTemplates, `{"success":true,"template":{"id":"tmpl_2","name":"Welcome","day":1}}`)
		env.api.doFunc = func(context.Context, string, string, io.Reader, string) (*http.Response, error) {
			return recordedResponse(http.StatusInternalServerError, nil, `{"error":"disk full"}`), nil
		}

		created, err := env.facade.CreateTemplate(ctx,
			model.CreateTemplateParams{Name: "Welcome", Message: "Hi"},
			[]model.MediaUpload{{FileName: "x.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}})
		require.NoError(t, err)
		assert.Equal(t, "tmpl_2", created.ID)
		assert.Contains(t, env.notifier.all(), "error: Template created but media upload failed")
		assert.Contains(t, env.notifier.all(), "error: disk full")
	})
}

func TestFacade_TemplateOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("update stamps updatedAt", func(t *testing.T) {
		env := newFacadeEnv()
		name := "Renamed"
		_, err := env.facade.UpdateTemplate(ctx, "tmpl_1", model.UpdateTemplateParams{Name: &name})
		require.NoError(t, err)

		call := env.api.allCalls()[0]
		assert.Equal(t, http.MethodPut, call.Method)
		assert.Equal(t, pathTemplates+"/tmpl_1", call.Path)
		assert.JSONEq(t, `{"name":"Renamed","updatedAt":1772357400000}`, call.Body)
	})

	t.Run("update rejects blank name", func(t *testing.T) {
		env := newFacadeEnv()
		blank := " "
		_, err := env.facade.UpdateTemplate(ctx, "tmpl_1", model.UpdateTemplateParams{Name: &blank})
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})

	t.Run("delete notifies on success", func(t *testing.T) {
		env := newFacadeEnv()
		env.api.on(http.MethodDelete, pathTemplates+"/tmpl_1", `{"success":true}`)
		_, err := env.facade.DeleteTemplate(ctx, "tmpl_1")
		require.NoError(t, err)
		assert.Equal(t, []string{"success: Template deleted successfully!"}, env.notifier.all())
	})

	t.Run("remote failure passes through", func(t *testing.T) {
		env := newFacadeEnv()
		env.api.fail(http.MethodDelete, pathTemplates+"/tmpl_1", apperrors.Remote(404, "Template not found", nil))
		_, err := env.facade.DeleteTemplate(ctx, "tmpl_1")
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
		assert.Empty(t, env.notifier.all())
	})

	t.Run("media removal preview and test send", func(t *testing.T) {
		env := newFacadeEnv()
		env.api.on(http.MethodPost, pathTemplates+"/tmpl_1/preview", `{"preview":"Hi Ana"}`)

		_, err := env.facade.RemoveTemplateMedia(ctx, "tmpl_1", "m1")
		require.NoError(t, err)
		preview, err := env.facade.PreviewTemplate(ctx, "tmpl_1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"preview":"Hi Ana"}`, string(preview))
		_, err = env.facade.TestSendTemplate(ctx, "tmpl_1", "+15550001")
		require.NoError(t, err)

		calls := env.api.allCalls()
		require.Len(t, calls, 3)
		assert.Equal(t, pathTemplates+"/tmpl_1/media/m1", calls[0].Path)
		assert.Equal(t, http.MethodDelete, calls[0].Method)
		assert.Equal(t, pathTemplates+"/tmpl_1/test-send", calls[2].Path)
		assert.JSONEq(t, `{"testPhoneNumber":"+15550001"}`, calls[2].Body)

		_, err = env.facade.TestSendTemplate(ctx, "tmpl_1", "")
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})

	t.Run("bulk operation", func(t *testing.T) {
		env := newFacadeEnv()
		env.api.on(http.MethodPost, pathTemplates+"/bulk", `{"success":true,"updated":2}`)

		result, err := env.facade.BulkTemplateOperation(ctx, model.BulkActionActivate, []string{"a", "b"}, nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"success":true,"updated":2}`, string(result))
		assert.JSONEq(t, `{"action":"activate","templateIds":["a","b"],"data":{}}`, env.api.allCalls()[0].Body)

		_, err = env.facade.BulkTemplateOperation(ctx, model.BulkActionActivate, nil, nil)
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})

	t.Run("upload transport error", func(t *testing.T) {
		env := newFacadeEnv()
		env.api.doFunc = func(context.Context, string, string, io.Reader, string) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}
		_, err := env.facade.UploadTemplateMedia(ctx, "tmpl_1",
			[]model.MediaUpload{{FileName: "v.mp4", ContentType: "video/mp4", Data: []byte("v")}})
		assert.Error(t, err)
	})
}
