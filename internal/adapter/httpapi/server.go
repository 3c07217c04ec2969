package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
	"github.com/guillermoBallester/asksql/internal/core/service"
	"github.com/rs/cors"
)

// Options configures the HTTP surface.
type Options struct {
	Version        string
	BearerToken    string
	AllowedOrigins []string
	RequestTimeout time.Duration

	Explorer *service.ExplorerService
	Profiler *service.ProfilerService
	Query    *service.QueryService
	Ask      *service.AskService
	Saved    *service.SavedQueryService

	// MCP is mounted at /mcp when set, typically a streamable MCP server.
	MCP http.Handler
}

type handler struct {
	opts   Options
	logger *slog.Logger
}

// NewRouter builds the JSON API. Everything under /api and /mcp requires the
// bearer token; /health is open.
func NewRouter(opts Options, logger *slog.Logger) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}
	h := &handler{opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(accessLogMiddleware(logger))
	r.Use(func(next http.Handler) http.Handler { return recoveryMiddleware(next, logger) })

	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return bearerAuthMiddleware(next, opts.BearerToken) })

		r.Route("/api", func(r chi.Router) {
			r.Use(sourceMiddleware)
			r.Use(middleware.Timeout(opts.RequestTimeout))

			r.Get("/schema", h.schema)
			r.Get("/tables/{name}", h.describeTable)
			r.Get("/tables/{name}/profile", h.profileTable)
			r.Post("/ask", h.ask)
			r.Post("/query", h.query)
			r.Post("/explain", h.explain)

			r.Get("/saved", h.listSaved)
			r.Post("/saved", h.createSaved)
			r.Get("/saved/{id}", h.getSaved)
			r.Delete("/saved/{id}", h.deleteSaved)
			r.Post("/saved/{id}/run", h.runSaved)
		})

		if opts.MCP != nil {
			r.Handle("/mcp", opts.MCP)
			r.Handle("/mcp/*", opts.MCP)
		}
	})

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Mcp-Session-Id"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
	})
	return c.Handler(r)
}

type resultBody struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated,omitempty"`
}

func newResultBody(res *domain.ResultSet) *resultBody {
	if res == nil {
		return nil
	}
	cols := res.Columns
	if cols == nil {
		cols = []string{}
	}
	return &resultBody{Columns: cols, Rows: res.Records(), RowCount: res.Len(), Truncated: res.Truncated}
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.opts.Version})
}

func (h *handler) schema(w http.ResponseWriter, r *http.Request) {
	tables, err := h.opts.Explorer.ListTables(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	schema, err := h.opts.Explorer.SchemaContext(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	if tables == nil {
		tables = []port.TableInfo{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"tables": tables, "schema_context": schema})
}

func (h *handler) describeTable(w http.ResponseWriter, r *http.Request) {
	detail, err := h.opts.Explorer.DescribeTable(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *handler) profileTable(w http.ResponseWriter, r *http.Request) {
	profile, err := h.opts.Profiler.ProfileTable(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

type askRequest struct {
	Question string `json:"question"`
	Explain  bool   `json:"explain"`
}

type askResponse struct {
	service.Prepared
	Result      *resultBody `json:"result,omitempty"`
	Explanation string      `json:"explanation,omitempty"`
}

func (h *handler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	ans, err := h.opts.Ask.Run(r.Context(), req.Question)
	if err != nil {
		sql := ""
		if ans != nil {
			sql = ans.SQL
		}
		respondError(w, r, h.logger, err, sql)
		return
	}

	resp := askResponse{Prepared: ans.Prepared, Result: newResultBody(ans.Result)}
	if req.Explain {
		explanation, err := h.opts.Ask.Explain(r.Context(), ans.SQL, ans.SchemaContext)
		if err != nil {
			h.logger.WarnContext(r.Context(), "explanation failed", slog.String("error", err.Error()))
		}
		resp.Explanation = explanation
	}
	respondJSON(w, http.StatusOK, resp)
}

type sqlRequest struct {
	SQL           string `json:"sql"`
	SchemaContext string `json:"schema_context,omitempty"`
}

func (h *handler) query(w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	res, err := h.opts.Query.Execute(r.Context(), req.SQL)
	if err != nil {
		respondError(w, r, h.logger, err, req.SQL)
		return
	}
	respondJSON(w, http.StatusOK, newResultBody(res))
}

func (h *handler) explain(w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	explanation, err := h.opts.Ask.Explain(r.Context(), req.SQL, req.SchemaContext)
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"sql": req.SQL, "explanation": explanation})
}

func (h *handler) listSaved(w http.ResponseWriter, r *http.Request) {
	queries, err := h.opts.Saved.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	if queries == nil {
		queries = []domain.SavedQuery{}
	}
	respondJSON(w, http.StatusOK, queries)
}

func (h *handler) createSaved(w http.ResponseWriter, r *http.Request) {
	var req domain.SavedQuery
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}
	req.ID = 0
	req.CreatedAt = time.Time{}

	q, err := h.opts.Saved.Save(r.Context(), req)
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	respondJSON(w, http.StatusCreated, q)
}

func (h *handler) getSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q, err := h.opts.Saved.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	respondJSON(w, http.StatusOK, q)
}

func (h *handler) deleteSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.opts.Saved.Delete(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) runSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q, res, err := h.opts.Saved.RunSaved(r.Context(), id)
	if err != nil {
		sql := ""
		if q != nil {
			sql = q.SQL
		}
		respondError(w, r, h.logger, err, sql)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"saved_query": q, "result": newResultBody(res)})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "id must be a positive integer"})
		return 0, false
	}
	return id, true
}
