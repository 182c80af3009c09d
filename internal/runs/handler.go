package runs

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/gather/internal/pipeline"
	"github.com/JaimeStill/gather/pkg/handlers"
	"github.com/JaimeStill/gather/pkg/middleware"
	"github.com/JaimeStill/gather/pkg/routes"
)

// Handler provides HTTP endpoints for pipeline runs.
type Handler struct {
	runner  Runner
	logger  *slog.Logger
	maxBody int64
}

// NewHandler creates a Handler over runner. Request bodies larger than
// maxBody bytes are rejected.
func NewHandler(runner Runner, logger *slog.Logger, maxBody int64) *Handler {
	return &Handler{
		runner:  runner,
		logger:  logger.With("handler", "runs"),
		maxBody: maxBody,
	}
}

// Routes returns the route groups served by the handler.
func (h *Handler) Routes() []routes.Group {
	return []routes.Group{
		{
			Prefix: "/runs",
			Routes: []routes.Route{
				{Method: "POST", Pattern: "", Handler: h.Run, Summary: "Run the acquisition graph for one target"},
			},
		},
		{
			Prefix: "/graph",
			Routes: []routes.Route{
				{Method: "GET", Pattern: "", Handler: h.Graph, Summary: "Describe the graph steps and edges"},
			},
		},
		{
			Prefix: "/cache",
			Routes: []routes.Route{
				{Method: "GET", Pattern: "/stats", Handler: h.CacheStats, Summary: "Report result cache counters"},
			},
		},
	}
}

// Run executes one pipeline run and returns its Outcome. Failed runs
// answer 422 with the partial state they collected.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var body Request
	if err := handlers.DecodeJSON(w, r, h.maxBody, &body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, err)
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.Join(ErrInvalidBody, err))
		return
	}

	req, err := body.RunRequest()
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	req.RunID = middleware.RequestID(r.Context())

	o := h.runner.Run(r.Context(), req)

	h.logger.InfoContext(r.Context(), "run complete",
		"run_id", o.RunID,
		"target", req.Target,
		"status", o.Status,
		"reason", o.Reason,
		"steps", o.Steps,
	)

	status := http.StatusOK
	if !o.Succeeded() {
		status = http.StatusUnprocessableEntity
	}
	handlers.RespondJSON(w, status, o)
}

// Graph describes the registered steps with their edges and slots.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	cfg := h.runner.Config()
	handlers.RespondJSON(w, http.StatusOK, GraphInfo{
		Name:     pipeline.GraphName,
		Entry:    cfg.Entry,
		MaxSteps: cfg.MaxSteps,
		Steps:    h.runner.Describe(),
	})
}

// CacheStats reports result cache counters.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	c := h.runner.Cache()
	if c == nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(ErrNoCache), ErrNoCache)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, c.Stats())
}
