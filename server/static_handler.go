package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// StaticHandler serves the player UI from a directory. Unknown paths that look like client
// routes fall back to index.html.
type StaticHandler struct {
	dir   string
	files http.Handler
}

func NewStaticHandler(dir string) *StaticHandler {
	return &StaticHandler{dir: dir, files: http.FileServer(http.Dir(dir))}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		http.NotFound(w, r)
		return
	}
	name := filepath.Join(h.dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	if _, err := os.Stat(name); err != nil && path.Ext(r.URL.Path) == "" {
		http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
		return
	}
	h.files.ServeHTTP(w, r)
}

// uploadsHandler serves the local blob store under /uploads/ with long-lived caching.
func uploadsHandler(dir string) http.Handler {
	files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000")
		files.ServeHTTP(w, r)
	})
}
