// Package module mounts prefix-scoped HTTP handlers, each with its own
// middleware stack, under a single top-level router.
package module

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JaimeStill/gather/pkg/middleware"
)

// Module is an HTTP handler that strips its prefix and delegates to an inner router
// with its own middleware stack.
type Module struct {
	prefix     string
	router     http.Handler
	middleware middleware.Stack
}

// New creates a Module with a single-level prefix such as "/api".
func New(prefix string, router http.Handler) (*Module, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	return &Module{
		prefix: prefix,
		router: router,
	}, nil
}

// Handler returns the inner router wrapped with the module's middleware stack.
func (m *Module) Handler() http.Handler {
	return m.middleware.Apply(m.router)
}

// Prefix returns the module's path prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Serve strips the module prefix from the request path and dispatches to the inner router.
func (m *Module) Serve(w http.ResponseWriter, req *http.Request) {
	m.Handler().ServeHTTP(w, strip(req, m.prefix))
}

// Use adds middleware to the module's stack.
func (m *Module) Use(mw func(http.Handler) http.Handler) {
	m.middleware.Use(mw)
}

func strip(req *http.Request, prefix string) *http.Request {
	path := strings.TrimPrefix(req.URL.Path, prefix)
	if path == "" {
		path = "/"
	}

	out := req.Clone(req.Context())
	out.URL = new(url.URL)
	*out.URL = *req.URL
	out.URL.Path = path
	out.URL.RawPath = ""
	return out
}

// ValidatePrefix reports whether prefix is a non-empty single-level path
// beginning with a slash.
func ValidatePrefix(prefix string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("module prefix cannot be empty")
	case !strings.HasPrefix(prefix, "/"):
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	case strings.Count(prefix, "/") != 1 || len(prefix) == 1:
		return fmt.Errorf("module prefix must be single-level sub-path: %s", prefix)
	}
	return nil
}
