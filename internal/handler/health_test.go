package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("all checks pass", func(t *testing.T) {
		h := NewHealthHandler(map[string]Pinger{"storage": ok, "redis": ok})

		rec := serve(h, http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, map[string]any{"storage": "ok", "redis": "ok"}, body["checks"])
	})

	t.Run("one failing check degrades", func(t *testing.T) {
		h := NewHealthHandler(map[string]Pinger{"storage": ok, "redis": down})

		rec := serve(h, http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "degraded", body["status"])
		assert.Equal(t, "down", body["checks"].(map[string]any)["redis"])
	})
}
