package handler

import (
	"fmt"
	"html"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smartpreach/smartpreach-server/internal/util"
)

// RemoteAppHandler serves the remote-control single page app mounted at
// /remote/*. Asset paths are served from staticDir; anything else, such as
// /remote/{sessionId}, gets the app's index page.
type RemoteAppHandler struct {
	staticDir string
	indexFile string
}

func NewRemoteAppHandler(staticDir string) *RemoteAppHandler {
	return &RemoteAppHandler{
		staticDir: staticDir,
		indexFile: "index.html",
	}
}

func (h *RemoteAppHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if path == "" {
		path = strings.TrimPrefix(r.URL.Path, "/remote")
	}
	path = strings.TrimPrefix(path, "/")

	if path != "" {
		filePath := filepath.Join(h.staticDir, filepath.FromSlash(path))
		if strings.HasPrefix(filePath, filepath.Clean(h.staticDir)+string(filepath.Separator)) {
			info, err := os.Stat(filePath)
			if err == nil && !info.IsDir() {
				http.ServeFile(w, r, filePath)
				return
			}
		}
	}

	indexPath := filepath.Join(h.staticDir, h.indexFile)
	if _, err := os.Stat(indexPath); err == nil {
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, indexPath)
		return
	}

	// No bundled app: a bare page still carries the session id so a
	// scanned QR code lands somewhere meaningful.
	sessionID := strings.SplitN(path, "/", 2)[0]
	if !util.IsValidSessionID(sessionID) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	fmt.Fprintf(w, fallbackRemotePage, html.EscapeString(sessionID))
}

const fallbackRemotePage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">
<title>Remote</title></head>
<body data-session-id="%[1]s"><p>Live session <code>%[1]s</code></p></body></html>
`
