// Package staticfile implements the one concrete route handler spec.md
// §4.6 describes: serving files below a configured root with an
// extension whitelist and an anti-traversal check. Grounded on
// original_source/HttpServer.cpp's getEntireFile + util::fs::isSubpath.
package staticfile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ehrlich-b/reactorhttp/internal/broker"
	"github.com/ehrlich-b/reactorhttp/internal/httpwire"
)

// MaxFile is the maximum file size the responder will serve; larger files
// yield 413 (spec.md §4.6, §6).
const MaxFile = 1 << 20

// extensionContentType mirrors original_source/HttpServer.cpp's
// FileExt2ContentTypeMap.
var extensionContentType = map[string]string{
	".js":   "application/javascript",
	".css":  "text/css",
	".html": "text/html; charset=utf-8",
}

// Responder serves files rooted at Root.
type Responder struct {
	Root string
}

// New returns a Responder rooted at root.
func New(root string) *Responder {
	return &Responder{Root: root}
}

// Handle implements dispatch.Handler. url is the full request URL; it is
// joined onto Root and canonicalized before the whitelist and size checks
// run.
func (s *Responder) Handle(req *httpwire.Request, emit broker.EmitFunc) httpwire.Response {
	return s.serve(req.URL)
}

// indexFile is served for a request URL of "/", matching
// original_source/HttpServer.cpp's constructor registering
// GET / -> getEntireFile("/index.html", ...).
const indexFile = "/index.html"

// serve resolves url against Root and returns the resulting response.
func (s *Responder) serve(url string) httpwire.Response {
	if url == "/" {
		url = indexFile
	}
	joined := filepath.Join(s.Root, filepath.Clean("/"+url))

	absRoot, err := filepath.Abs(s.Root)
	if err != nil {
		return httpwire.NotFound()
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return httpwire.NotFound()
	}

	// Anti-traversal: the canonical path must stay under root even before
	// we touch the filesystem, and again after resolving symlinks.
	if !isSubpath(absJoined, absRoot) {
		return httpwire.NotFound()
	}

	resolved, err := filepath.EvalSymlinks(absJoined)
	if err != nil {
		return httpwire.NotFound()
	}
	if !isSubpath(resolved, absRoot) {
		return httpwire.NotFound()
	}

	ext := strings.ToLower(filepath.Ext(resolved))
	contentType, ok := extensionContentType[ext]
	if !ok {
		return httpwire.NotFound()
	}

	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return httpwire.NotFound()
	}
	if info.Size() > MaxFile {
		return httpwire.Response{Status: 413, Reason: "Payload Too Large", Headers: httpwire.NewHeader()}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return httpwire.NotFound()
	}

	resp := httpwire.NewResponse(200, data)
	resp.Headers.Set("Content-Type", contentType)
	return resp
}

// isSubpath reports whether path is root or a descendant of root, matching
// original_source's util::fs::isSubpath semantics.
func isSubpath(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, "..")
}
