package handlers

import (
	"io/fs"
	"net/http"
)

// RegisterUI serves the static question page from fsys at the root path.
func RegisterUI(mux *http.ServeMux, fsys fs.FS) {
	mux.Handle("GET /", http.FileServerFS(fsys))
}
