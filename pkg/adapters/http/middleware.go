package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/tasks"
	"github.com/go-chi/chi/v5/middleware"
)

// KeyRequest is the Context entry describing the incoming HTTP request.
const KeyRequest = "request"

// DefaultMaxBodyBytes bounds the request body copied into the Context.
const DefaultMaxBodyBytes = 1 << 20

// Stage is one asynchronous step of a request chain, such as *flow.Engine.
// next must be called exactly once.
type Stage interface {
	Handle(ctx context.Context, data *domain.Context, next func(error))
}

// ErrorHandler writes the response for a failed run.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type options struct {
	maxBody int64
	onError ErrorHandler
	logger  *slog.Logger
}

// Option configures the middleware.
type Option func(*options)

// WithMaxBodyBytes limits how much of the request body is read.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		o.maxBody = n
	}
}

// WithErrorHandler replaces the default JSON error response.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		o.onError = h
	}
}

// WithLogger sets the logger used for failed runs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

type ctxKey struct{}

// FromContext returns the flow Context attached to a request by the middleware.
func FromContext(ctx context.Context) (*domain.Context, bool) {
	data, ok := ctx.Value(ctxKey{}).(*domain.Context)
	return data, ok
}

// Middleware runs stage for every request. On success the flow Context is
// attached to the request context and the next handler is called; on failure
// the error handler writes the response and the chain stops.
func Middleware(stage Stage, opts ...Option) func(http.Handler) http.Handler {
	o := &options{
		maxBody: DefaultMaxBodyBytes,
		onError: WriteError,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := requestContext(r, o.maxBody)
			if err != nil {
				o.onError(w, r, err)
				return
			}

			done := make(chan error, 1)
			stage.Handle(r.Context(), data, func(err error) {
				done <- err
			})

			select {
			case err = <-done:
			case <-r.Context().Done():
				err = r.Context().Err()
			}
			if err != nil {
				o.logger.Warn("flow stage failed", "method", r.Method, "path", r.URL.Path, "error", err)
				o.onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, data)))
		})
	}
}

func requestContext(r *http.Request, maxBody int64) (*domain.Context, error) {
	req := map[string]any{
		"method":  r.Method,
		"path":    r.URL.Path,
		"query":   flatten(r.URL.Query()),
		"headers": flatten(r.Header),
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		req["id"] = id
	}

	if r.Body != nil {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
		if err != nil {
			return nil, &RequestError{Status: http.StatusBadRequest, Err: fmt.Errorf("read body: %w", err)}
		}
		if int64(len(raw)) > maxBody {
			return nil, &RequestError{Status: http.StatusRequestEntityTooLarge, Err: fmt.Errorf("body exceeds %d bytes", maxBody)}
		}
		if len(raw) > 0 {
			body, err := decodeBody(r.Header.Get("Content-Type"), raw)
			if err != nil {
				return nil, &RequestError{Status: http.StatusBadRequest, Err: err}
			}
			req["body"] = body
		}
	}

	return domain.NewContextFrom(map[string]any{
		KeyRequest:        req,
		domain.KeyMessage: map[string]any{},
	}), nil
}

func decodeBody(contentType string, raw []byte) (any, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "application/json" && !strings.HasSuffix(mediaType, "+json") {
		return string(raw), nil
	}
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return body, nil
}

// flatten keeps the first value of each key; repeated keys become lists.
func flatten(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		switch len(v) {
		case 0:
		case 1:
			out[k] = v[0]
		default:
			list := make([]any, len(v))
			for i, s := range v {
				list[i] = s
			}
			out[k] = list
		}
	}
	return out
}

// RequestError is a failure to turn the HTTP request into a flow Context.
type RequestError struct {
	Status int
	Err    error
}

func (e *RequestError) Error() string { return e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

// StatusFor maps a run error to an HTTP status code.
func StatusFor(err error) int {
	var (
		reqErr   *RequestError
		defErr   *domain.DefinitionError
		paramErr *domain.ParamResolutionError
		thrown   *tasks.Error
	)
	switch {
	case errors.As(err, &reqErr):
		return reqErr.Status
	case errors.As(err, &defErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &paramErr):
		return http.StatusBadRequest
	case errors.As(err, &thrown):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError is the default ErrorHandler: a JSON body with the error message
// and, for thrown errors, their code.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	body := map[string]any{"error": err.Error()}
	var thrown *tasks.Error
	if errors.As(err, &thrown) && thrown.Code != "" {
		body["code"] = thrown.Code
	}
	writeJSON(w, StatusFor(err), body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
