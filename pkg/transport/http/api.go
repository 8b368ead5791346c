package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/catalog"
	"github.com/loupelabs/loupe/pkg/ingest"
	"github.com/loupelabs/loupe/pkg/transport"
)

// QueryEngine answers questions against the indexed corpus. Implemented
// by engine.Engine.
type QueryEngine interface {
	Query(ctx context.Context, q api.Query) (*api.Answer, error)
	NaiveQuery(ctx context.Context, q api.Query) (*api.Answer, error)
}

// Ingestor loads documents into a collection. Implemented by
// ingest.Pipeline.
type Ingestor interface {
	IngestFiles(ctx context.Context, paths []string, collection, description string) (int, error)
	IngestWeb(ctx context.Context, urls []string, collection, description string) (int, error)
}

// APIConfig holds the HTTP API settings.
type APIConfig struct {
	// MaxBodySize caps request bodies. Defaults to 1 MB.
	MaxBodySize int64

	// Limits bounds query request knobs. Zero-valued fields fall back
	// to api.DefaultLimits.
	Limits api.Limits

	// DefaultCollection is used for ingestion requests that omit a
	// collection name.
	DefaultCollection string
}

// API serves the loupe REST endpoints.
type API struct {
	engine   QueryEngine
	ingestor Ingestor
	tracker  *ingest.Tracker
	catalog  catalog.Catalog
	cfg      APIConfig
}

// NewAPI creates the REST API around the engine, the ingestion pipeline,
// and the catalog.
func NewAPI(eng QueryEngine, ing Ingestor, tracker *ingest.Tracker, cat catalog.Catalog, cfg APIConfig) *API {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 1 << 20
	}
	if cfg.Limits == (api.Limits{}) {
		cfg.Limits = api.DefaultLimits()
	}
	return &API{
		engine:   eng,
		ingestor: ing,
		tracker:  tracker,
		catalog:  cat,
		cfg:      cfg,
	}
}

// Routes returns the mux with all API endpoints registered. Middleware
// (auth, metrics, logging) is layered on top by the caller.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/query", a.handleQuery)
	mux.HandleFunc("POST /v1/naive-query", a.handleNaiveQuery)
	mux.HandleFunc("GET /v1/collections", a.handleListCollections)
	mux.HandleFunc("POST /v1/ingest/files", a.handleIngestFiles)
	mux.HandleFunc("POST /v1/ingest/web", a.handleIngestWeb)
	mux.HandleFunc("GET /v1/ingest/tasks/{id}", a.handleGetTask)
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /readyz", a.handleReadyz)
	return mux
}

// CollectionList is the response for GET /v1/collections.
type CollectionList struct {
	Collections []catalog.Collection `json:"collections"`
}

func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeQuery(w, r)
	if !ok {
		return
	}

	answer, err := a.engine.Query(r.Context(), queryFromRequest(req))
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (a *API) handleNaiveQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeQuery(w, r)
	if !ok {
		return
	}

	answer, err := a.engine.NaiveQuery(r.Context(), queryFromRequest(req))
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// decodeQuery reads and validates a query request body.
func (a *API) decodeQuery(w http.ResponseWriter, r *http.Request) (api.QueryRequest, bool) {
	var req api.QueryRequest
	if !a.decode(w, r, &req) {
		return req, false
	}
	if apiErr := api.ValidateQueryRequest(&req, a.cfg.Limits); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return req, false
	}
	return req, true
}

// queryFromRequest maps the wire request onto an engine query. Unset
// knobs stay zero so the engine applies its configured defaults.
func queryFromRequest(req api.QueryRequest) api.Query {
	q := api.Query{
		Question:   req.Question,
		Collection: req.Collection,
	}
	if req.MaxIterations != nil {
		q.MaxIterations = *req.MaxIterations
	}
	if req.TopK != nil {
		q.TopK = *req.TopK
	}
	return q
}

func (a *API) handleListCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := a.catalog.List(r.Context())
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	if cols == nil {
		cols = []catalog.Collection{}
	}
	writeJSON(w, http.StatusOK, CollectionList{Collections: cols})
}

func (a *API) handleIngestFiles(w http.ResponseWriter, r *http.Request) {
	var req api.IngestFilesRequest
	if !a.decode(w, r, &req) {
		return
	}
	if len(req.Paths) == 0 {
		transport.WriteAPIError(w, api.NewInvalidRequestError("paths", "at least one path is required"))
		return
	}
	collection, ok := a.ingestCollection(w, req.Collection)
	if !ok {
		return
	}

	id := a.tracker.Create("files", collection)
	go a.runIngest(context.WithoutCancel(r.Context()), id, func(ctx context.Context) (int, error) {
		return a.ingestor.IngestFiles(ctx, req.Paths, collection, req.Description)
	})
	writeJSON(w, http.StatusAccepted, api.IngestAccepted{TaskID: id})
}

func (a *API) handleIngestWeb(w http.ResponseWriter, r *http.Request) {
	var req api.IngestWebRequest
	if !a.decode(w, r, &req) {
		return
	}
	if len(req.URLs) == 0 {
		transport.WriteAPIError(w, api.NewInvalidRequestError("urls", "at least one url is required"))
		return
	}
	collection, ok := a.ingestCollection(w, req.Collection)
	if !ok {
		return
	}

	id := a.tracker.Create("web", collection)
	go a.runIngest(context.WithoutCancel(r.Context()), id, func(ctx context.Context) (int, error) {
		return a.ingestor.IngestWeb(ctx, req.URLs, collection, req.Description)
	})
	writeJSON(w, http.StatusAccepted, api.IngestAccepted{TaskID: id})
}

// ingestCollection resolves the target collection name, falling back to
// the configured default.
func (a *API) ingestCollection(w http.ResponseWriter, requested string) (string, bool) {
	name := requested
	if name == "" {
		name = a.cfg.DefaultCollection
	}
	name = api.NormalizeCollectionName(name)
	if name == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("collection", "collection is required"))
		return "", false
	}
	return name, true
}

// runIngest drives one asynchronous ingestion task to completion. The
// context is detached from the originating request so the task survives
// the response.
func (a *API) runIngest(ctx context.Context, id string, fn func(context.Context) (int, error)) {
	a.tracker.Start(id)
	chunks, err := fn(ctx)
	if err != nil {
		a.tracker.Fail(id, err)
		return
	}
	a.tracker.Complete(id, chunks)
}

func (a *API) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, ok := a.tracker.Get(id)
	if !ok {
		transport.WriteAPIError(w, api.NewNotFoundError("task "+id+" not found"))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.catalog.HealthCheck(r.Context()); err != nil {
		transport.WriteAPIError(w, api.NewUnavailableError("catalog not ready: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// decode reads a JSON request body into dst, enforcing Content-Type and
// the body size cap. On failure it writes the error response and returns
// false.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && ct != "application/json" {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.cfg.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
