package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/model"
	"github.com/whatsdrip/dashboard/internal/notify"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DownloadExport fetches a spreadsheet export. It bypasses the JSON client
// because the response is binary.
func (f *Facade) DownloadExport(ctx context.Context, exportType model.ExportType) (*model.ExportFile, error) {
	kind := strings.TrimSpace(string(exportType))
	if kind == "" {
		kind = string(model.ExportTypeContacts)
	}

	resp, err := f.api.Do(ctx, http.MethodGet, pathExport+url.PathEscape(kind), nil, "")
	if err != nil {
		log.Error().Err(err).Str("type", kind).Msg("export download failed")
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		f.notifier.Notify(ctx, notify.LevelError, "Please sign in again to download data")
		return nil, apperrors.Unauthorized("Please sign in again to download data")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.notifier.Notify(ctx, notify.LevelError, "Failed to download data. Please try again.")
		return nil, apperrors.Remote(resp.StatusCode, "Failed to download data. Please try again.", nil)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != xlsxContentType {
		log.Error().Str("type", kind).Str("contentType", resp.Header.Get("Content-Type")).Msg("export has unexpected content type")
		f.notifier.Notify(ctx, notify.LevelError, "Received invalid file format from server")
		return nil, apperrors.InvalidFormat()
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		f.notifier.Notify(ctx, notify.LevelError, "Failed to download data. Please try again.")
		return nil, apperrors.Remote(0, "Failed to download data. Please try again.", err)
	}

	file := &model.ExportFile{
		FileName:    exportFileName(resp.Header.Get("Content-Disposition"), kind, f.now().UTC().Format("2006-01-02")),
		ContentType: xlsxContentType,
		Data:        data,
	}

	f.notifier.Notify(ctx, notify.LevelSuccess,
		fmt.Sprintf("%s data downloaded successfully!", capitalize(kind)))
	return file, nil
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// exportFileName prefers the server's Content-Disposition filename and
// falls back to <type>_<date>.xlsx.
func exportFileName(disposition, kind, date string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" && !strings.ContainsAny(name, `/\`) {
				return name
			}
		}
	}
	return fmt.Sprintf("%s_%s.xlsx", kind, date)
}
