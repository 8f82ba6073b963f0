package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// UIHandler serves the dashboard bundle and falls back to index.html for
// client-side routes. API prefixes never fall back.
type UIHandler struct {
	staticDir string
	indexFile string
}

func NewUIHandler(staticDir string) *UIHandler {
	return &UIHandler{
		staticDir: staticDir,
		indexFile: "index.html",
	}
}

func (h *UIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	for _, prefix := range []string{"/api/", "/v1/", "/auth/"} {
		if strings.HasPrefix(clean+"/", prefix) {
			http.NotFound(w, r)
			return
		}
	}

	filePath := filepath.Join(h.staticDir, filepath.FromSlash(clean))
	info, err := os.Stat(filePath)
	if err == nil && !info.IsDir() {
		http.ServeFile(w, r, filePath)
		return
	}

	indexPath := filepath.Join(h.staticDir, h.indexFile)
	if _, err := os.Stat(indexPath); err != nil {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, indexPath)
}
