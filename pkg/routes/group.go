// Package routes declares HTTP routes in prefix groups and registers them
// on a ServeMux.
package routes

import "net/http"

// Group organizes routes under a common prefix.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	walk("", groups, func(prefix string, r Route) {
		mux.HandleFunc(r.Method+" "+prefix+r.Pattern, r.Handler)
	})
}

// Index lists every route in the groups with its full path under base.
func Index(base string, groups ...Group) []Entry {
	var out []Entry
	walk(base, groups, func(prefix string, r Route) {
		path := prefix + r.Pattern
		if path == "" {
			path = "/"
		}
		out = append(out, Entry{Method: r.Method, Path: path, Summary: r.Summary})
	})
	return out
}

func walk(parent string, groups []Group, fn func(prefix string, r Route)) {
	for _, g := range groups {
		prefix := parent + g.Prefix
		for _, r := range g.Routes {
			fn(prefix, r)
		}
		walk(prefix, g.Children, fn)
	}
}
