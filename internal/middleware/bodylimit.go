package middleware

import (
	"net/http"
	"strings"

	"github.com/whatsdrip/dashboard/internal/config"
)

// BodyLimitMiddleware caps request bodies. Multipart uploads get the larger
// upload limit; everything else the JSON limit.
type BodyLimitMiddleware struct {
	jsonMax   int64
	uploadMax int64
}

func NewBodyLimitMiddleware(jsonMax, uploadMax int64) *BodyLimitMiddleware {
	if jsonMax <= 0 {
		jsonMax = config.MaxJSONBodyBytes
	}
	if uploadMax <= 0 {
		uploadMax = config.MaxUploadBodyBytes
	}
	return &BodyLimitMiddleware{jsonMax: jsonMax, uploadMax: uploadMax}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := m.jsonMax
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			limit = m.uploadMax
		}

		if r.Body != nil && r.ContentLength > limit {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "Request body too large",
				"code":  "PAYLOAD_TOO_LARGE",
			})
			return
		}

		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}
