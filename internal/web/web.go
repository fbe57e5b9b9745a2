// Package web serves the embedded single-page UI: a submission form that
// polls job status and offers the PDF download once rendering completes.
package web

import (
	"embed"
	"net/http"
)

//go:embed index.html
var content embed.FS

func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		page, err := content.ReadFile("index.html")
		if err != nil {
			http.Error(w, "ui unavailable", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(page)
	})
}
