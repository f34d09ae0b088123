package restkit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler exposes the engine over HTTP. Routes are mounted per registered
// entity plus the batch endpoint:
//
//	GET    /{slug}               list
//	POST   /{slug}               create
//	GET    /{slug}/trashed       trashed list (soft-delete entities only)
//	GET    /{slug}/{id}          read
//	PATCH  /{slug}/{id}          update
//	PUT    /{slug}/{id}          update
//	DELETE /{slug}/{id}          delete
//	POST   /{slug}/{id}/restore  restore
//	DELETE /{slug}/{id}/purge    purge
//	POST   /batch                nested transaction
type Handler struct {
	engine   *Engine
	getActor func(*http.Request) Actor
	logger   zerolog.Logger
}

// HandlerOption configures the Handler.
type HandlerOption func(*Handler)

// NewHandler creates a Handler for an engine.
//
// Example:
//
//	handler := restkit.NewHandler(engine,
//	    restkit.WithActorExtractor(func(r *http.Request) restkit.Actor {
//	        return restkit.Actor{ID: r.Header.Get("X-Actor")}
//	    }),
//	)
//	http.ListenAndServe(":8080", handler.Routes())
func NewHandler(engine *Engine, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:   engine,
		getActor: defaultGetActor,
		logger:   engine.logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithActorExtractor sets a custom function to resolve the actor from a
// request. The default reads a previously resolved actor from the context.
func WithActorExtractor(fn func(*http.Request) Actor) HandlerOption {
	return func(h *Handler) {
		h.getActor = fn
	}
}

// WithHandlerLogger overrides the request logger.
func WithHandlerLogger(logger zerolog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

func defaultGetActor(r *http.Request) Actor {
	return ActorFrom(r.Context())
}

// Routes builds the chi router for every registered entity.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requestLogger)

	for _, slug := range h.engine.Registry().Slugs() {
		d, err := h.engine.Registry().Lookup(slug)
		if err != nil {
			continue
		}
		slug := slug
		r.Route("/"+slug, func(r chi.Router) {
			for _, mw := range d.middleware {
				r.Use(mw)
			}
			r.Get("/", h.resource(slug, ActionList))
			r.Post("/", h.resource(slug, ActionStore))
			r.Get("/trashed", h.resource(slug, ActionTrashed))
			r.Get("/{id}", h.resource(slug, ActionShow))
			r.Patch("/{id}", h.resource(slug, ActionUpdate))
			r.Put("/{id}", h.resource(slug, ActionUpdate))
			r.Delete("/{id}", h.resource(slug, ActionDelete))
			r.Post("/{id}/restore", h.resource(slug, ActionRestore))
			r.Delete("/{id}/purge", h.resource(slug, ActionPurge))
		})
	}

	r.Post("/batch", h.batch)
	return r
}

// requestLogger tags each request with an id and logs method/path/duration.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		ctx := WithRequestID(r.Context(), requestID)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		h.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (h *Handler) resource(slug string, action Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := Request{
			Action: action,
			Entity: slug,
			ID:     chi.URLParam(r, "id"),
			Params: r.URL.Query(),
		}

		if action == ActionStore || action == ActionUpdate {
			var payload Row
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				h.writeError(w, NewError(ErrStructural, "invalid JSON payload"))
				return
			}
			req.Payload = payload
		}

		resp, err := h.engine.Dispatch(r.Context(), h.getActor(r), req)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeResponse(w, resp)
	}
}

// batchBody is the wire shape of the nested transaction endpoint.
type batchBody struct {
	Operations []Operation `json:"operations"`
}

func (h *Handler) batch(w http.ResponseWriter, r *http.Request) {
	var body batchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, NewError(ErrStructural, "invalid JSON payload"))
		return
	}

	results, err := h.engine.ExecuteBatch(r.Context(), h.getActor(r), body.Operations)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) writeResponse(w http.ResponseWriter, resp *Response) {
	if resp.Meta != nil {
		w.Header().Set(HeaderCurrentPage, itoa(resp.Meta.CurrentPage))
		w.Header().Set(HeaderLastPage, itoa(resp.Meta.LastPage))
		w.Header().Set(HeaderPerPage, itoa(resp.Meta.PerPage))
		w.Header().Set(HeaderTotal, itoa64(resp.Meta.Total))
	}

	switch {
	case resp.Status == http.StatusNoContent:
		w.WriteHeader(http.StatusNoContent)
	case resp.Rows != nil:
		h.writeJSON(w, resp.Status, resp.Rows)
	default:
		h.writeJSON(w, resp.Status, resp.Row)
	}
}

// errorBody is the wire shape of every error response. Index is present
// only for batch failures; errors only for validation failures.
type errorBody struct {
	Message string              `json:"message"`
	Index   *int                `json:"index,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	body := errorBody{Message: err.Error()}
	if e, ok := err.(*Error); ok {
		if e.Index >= 0 {
			index := e.Index
			body.Index = &index
		}
		body.Errors = e.Fields
	}
	h.writeJSON(w, HTTPStatus(err), body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn().Err(err).Msg("write response")
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}
