package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Respond writes the flow's message as the HTTP response.
//
// message.status sets the status code (default 200), message.headers adds
// response headers and message.body is the payload: strings are written as
// text, anything else as JSON. Without a body the whole message is returned.
func Respond(w http.ResponseWriter, r *http.Request) {
	data, ok := FromContext(r.Context())
	if !ok {
		http.Error(w, "no flow context", http.StatusInternalServerError)
		return
	}

	msg, _ := data.Message().(map[string]any)
	status := http.StatusOK
	if s, ok := toStatus(msg["status"]); ok {
		status = s
	}
	if headers, ok := msg["headers"].(map[string]any); ok {
		for k, v := range headers {
			w.Header().Set(k, fmt.Sprint(v))
		}
	}

	body, hasBody := msg["body"]
	if !hasBody {
		writeJSON(w, status, msg)
		return
	}
	if text, ok := body.(string); ok {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(text))
		return
	}
	writeJSON(w, status, body)
}

func toStatus(v any) (int, bool) {
	var n int
	switch s := v.(type) {
	case int:
		n = s
	case int64:
		n = int(s)
	case float64:
		n = int(s)
	default:
		return 0, false
	}
	if n < 100 || n > 999 {
		return 0, false
	}
	return n, true
}

// NewHandler exposes stage as an HTTP endpoint: every request under the
// router runs the flow and the resulting message is written back.
func NewHandler(stage Stage, opts ...Option) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.With(Middleware(stage, opts...)).HandleFunc("/*", Respond)
	return r
}
