// Package web serves the embedded demo page. The page is self-contained:
// posts and likes live in browser localStorage and never touch the API.
package web

import (
	"embed"
	"net/http"
)

//go:embed index.html app.js
var static embed.FS

// Handler returns an http.Handler serving the demo page at the root path.
func Handler() http.Handler {
	return http.FileServerFS(static)
}
