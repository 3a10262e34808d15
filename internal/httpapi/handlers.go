package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"schemachain/internal/db"
	"schemachain/internal/engine"
	"schemachain/internal/migration"
)

type HealthHandler struct {
	Adapter db.Adapter
}

type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.Adapter.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "service_unhealthy", "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", DB: "ok"})
}

// MigrationHandler serves the read side: the chain as the loaded set
// describes it, independent of any target database.
type MigrationHandler struct {
	Engine *engine.Engine
}

type migrationSummary struct {
	Name     string   `json:"name"`
	From     string   `json:"from,omitempty"`
	Backends []string `json:"backends"`
	Tables   []string `json:"tables"`
}

func (h *MigrationHandler) List(w http.ResponseWriter, r *http.Request) {
	set := h.Engine.Set()
	out := make([]migrationSummary, 0, len(set.Migrations))
	for _, name := range set.Names() {
		rec := set.Migrations[name]
		out = append(out, summarize(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"migrations": out,
		"latest":     set.Latest,
	})
}

func (h *MigrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Engine.Set().Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summarize(rec))
}

func summarize(rec *migration.Record) migrationSummary {
	backends := make([]string, 0, 2)
	for _, id := range rec.Backends() {
		backends = append(backends, string(id))
	}
	return migrationSummary{
		Name:     rec.Name,
		From:     rec.From,
		Backends: backends,
		Tables:   rec.DB.TableNames(),
	}
}

// RunHandler serves status and migrate against the configured target.
// A mutex keeps runs serial within this process; the adapter's
// advisory lock covers other processes.
type RunHandler struct {
	Engine  *engine.Engine
	Adapter db.Adapter

	mu sync.Mutex
}

func (h *RunHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.Engine.Status(r.Context(), h.Adapter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "status_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type migrateRequest struct {
	Target string `json:"target"`
}

func (h *RunHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	result, err := h.Engine.Migrate(r.Context(), h.Adapter, req.Target)
	if err != nil {
		status, code := migrateErrorStatus(err)
		payload := map[string]any{
			"error": map[string]any{"code": code, "message": err.Error()},
		}
		if result != nil && len(result.Steps) > 0 {
			payload["run_id"] = result.RunID
			payload["applied"] = result.Steps
		}
		writeJSON(w, status, payload)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func migrateErrorStatus(err error) (int, string) {
	var execErr *engine.ExecError
	switch {
	case errors.Is(err, migration.ErrNoSuchMigration):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, migration.ErrNoPath):
		return http.StatusConflict, "no_path"
	case errors.Is(err, migration.ErrUnsupportedBackend):
		return http.StatusConflict, "unsupported_backend"
	case errors.As(err, &execErr):
		return http.StatusInternalServerError, "execution_failed"
	default:
		return http.StatusInternalServerError, "migrate_failed"
	}
}
