package server

import (
	"net/http"
	"strings"
)

// ProfileAPI defines the minimal surface the lifecycle router needs from the
// lookup service to serve HTTP requests.
type ProfileAPI interface {
	ServeProfile(http.ResponseWriter, *http.Request)
	ServeHealth(http.ResponseWriter, *http.Request)
	RequestWithHandle(*http.Request, string) *http.Request
	WriteError(http.ResponseWriter, int, string)
}

// NewProfileHandler wires the HTTP routing facade to the lookup service so
// the lifecycle server owns URL dispatch without embedding routing logic
// into the service itself.
func NewProfileHandler(api ProfileAPI) http.Handler {
	if api == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, handle, ok := parseProfileRoute(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		switch route {
		case "profiles":
			if handle == "" {
				api.WriteError(w, http.StatusBadRequest, "profile handle required")
				return
			}
			api.ServeProfile(w, api.RequestWithHandle(r, handle))
		case "healthz":
			api.ServeHealth(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func parseProfileRoute(path string) (route, handle string, ok bool) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", "", false
	}
	parts := strings.Split(trimmed, "/")
	switch len(parts) {
	case 1:
		switch strings.ToLower(parts[0]) {
		case "health", "healthz":
			return "healthz", "", true
		case "profiles":
			return "profiles", "", true
		}
	case 2:
		if strings.ToLower(parts[0]) == "profiles" {
			return "profiles", parts[1], true
		}
	}
	return "", "", false
}
