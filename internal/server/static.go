package server

import (
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// spaHandler serves a built single-page app. Unknown paths get index.html so
// client-side routes survive a reload.
type spaHandler struct {
	dir string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeErr(w, http.StatusNotFound, errors.New("no such endpoint"))
		return
	}
	name := filepath.Join(h.dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	if info, err := os.Stat(name); err != nil || info.IsDir() {
		http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
		return
	}
	http.ServeFile(w, r, name)
}
