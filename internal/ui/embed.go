// Package ui serves the embedded workspace viewer.
package ui

import (
	"embed"
	"io"
	"io/fs"
	"net/http"
	"time"
)

//go:embed dist/*
var distFS embed.FS

// Handler returns an http.Handler that serves the embedded viewer.
// Unknown paths fall back to index.html so client-side routes work.
func Handler() http.Handler {
	sub, _ := fs.Sub(distFS, "dist")
	fileServer := http.FileServer(http.FS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "" || path == "/" {
			path = "/index.html"
		}
		// Path for fs: strip leading slash
		fsPath := path
		if len(fsPath) > 0 && fsPath[0] == '/' {
			fsPath = fsPath[1:]
		}
		f, err := sub.Open(fsPath)
		if err != nil {
			// Fallback: serve index.html with 200 so client-side routing works (no redirect)
			// http.ServeFileFS needs Go 1.22; serve the file directly on Go 1.21.
			idx, ierr := sub.Open("index.html")
			if ierr != nil {
				http.NotFound(w, r)
				return
			}
			defer idx.Close()
			if rs, ok := idx.(io.ReadSeeker); ok {
				http.ServeContent(w, r, "index.html", time.Time{}, rs)
			} else {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				_, _ = io.Copy(w, idx)
			}
			return
		}
		_ = f.Close()
		fileServer.ServeHTTP(w, r)
	})
}
