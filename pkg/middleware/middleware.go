package middleware

import "net/http"

// Stack is an ordered list of middleware. The first entry added is the
// outermost wrapper.
type Stack []func(http.Handler) http.Handler

// Use appends mw to the stack.
func (s *Stack) Use(mw func(http.Handler) http.Handler) {
	*s = append(*s, mw)
}

// Apply wraps handler with every middleware in the stack.
func (s Stack) Apply(handler http.Handler) http.Handler {
	for i := len(s) - 1; i >= 0; i-- {
		handler = s[i](handler)
	}
	return handler
}
