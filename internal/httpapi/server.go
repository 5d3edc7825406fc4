// Package httpapi serves the workspace over HTTP: read endpoints backed by
// the store and query engine, the action dispatch/confirm surface, the
// audit log, and an SSE stream carrying coarse change notifications.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/webanalyst/corius/internal/agent"
	"github.com/webanalyst/corius/internal/persist"
	"github.com/webanalyst/corius/internal/persist/postgres"
	"github.com/webanalyst/corius/internal/query"
	"github.com/webanalyst/corius/internal/store"
	"github.com/webanalyst/corius/internal/ui"
	"github.com/webanalyst/corius/internal/workspace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// defaultMaxRequestBodyBytes is the default limit for request body size
// (1 MiB) to prevent OOM.
const defaultMaxRequestBodyBytes = 1 << 20

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read
// more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers for dev mode (UI dev server on a
// different origin).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiKeyMiddleware requires X-API-Key (or api_key query) on every route
// except /health.
func apiKeyMiddleware(key string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != key && r.URL.Query().Get("api_key") != key {
			writeJSONError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServerOptions configures the HTTP server (home dir, listen addr, API key,
// persistence driver, metrics).
type ServerOptions struct {
	Home           string
	Addr           string
	Dev            bool
	APIKey         string        // if set, require X-API-Key header or query api_key
	DBDriver       string        // "sqlite" (default) or "postgres"
	DBURL          string        // for postgres: connection string (or set DATABASE_URL env)
	FlushDelay     time.Duration // store debounce window; zero uses the store default
	Seed           bool          // insert the demo workspace when the store is empty
	MetricsHandler http.Handler  // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool          // if true, wrap handler with otelhttp for request metrics
}

// App holds the HTTP server, SSE hub, store, action service, and home path.
type App struct {
	Server *http.Server
	Hub    *SSEHub
	Store  *store.Store
	Agent  *agent.Service
	Home   string
}

// NewApp creates the HTTP app (server, hub, store, action service) and
// registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	hub := NewSSEHub()
	mux := http.NewServeMux()

	var gw persist.Gateway
	var err error
	if opts.DBDriver == "postgres" {
		gw, err = postgres.Open(opts.DBURL)
	} else {
		gw, err = persist.Open(opts.Home)
	}
	if err != nil {
		return nil, err
	}
	st, err := store.Open(context.Background(), store.Options{Gateway: gw, FlushDelay: opts.FlushDelay})
	if err != nil {
		_ = gw.Close()
		return nil, err
	}
	if opts.Seed {
		if err := st.SeedDemo(context.Background()); err != nil {
			// Closing the store also closes the gateway it owns.
			_ = st.Close(context.Background())
			return nil, err
		}
	}

	app := &App{
		Hub:   hub,
		Store: st,
		Agent: agent.New(st),
		Home:  opts.Home,
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "last_update": st.LastUpdate()})
	})

	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			items := st.AllItems(true)
			var pages, tasks, rows, archived int64
			for _, it := range items {
				switch it.Type {
				case workspace.ItemTypePage:
					pages++
				case workspace.ItemTypeTask:
					tasks++
				case workspace.ItemTypeRow:
					rows++
				}
				if it.Archived {
					archived++
				}
			}
			_, _ = fmt.Fprintf(w, "# TYPE corius_items_total gauge\n")
			_, _ = fmt.Fprintf(w, "corius_items_total{type=\"page\"} %d\n", pages)
			_, _ = fmt.Fprintf(w, "corius_items_total{type=\"task\"} %d\n", tasks)
			_, _ = fmt.Fprintf(w, "corius_items_total{type=\"database-row\"} %d\n", rows)
			_, _ = fmt.Fprintf(w, "corius_items_archived_total %d\n", archived)
		})
	}

	mux.HandleFunc("/stream", hub.Handler())

	// Embedded viewer; API routes above take precedence.
	mux.Handle("/", ui.Handler())

	// --- Items ---
	mux.HandleFunc("/items", app.handleItems)
	mux.HandleFunc("/items/", app.handleItemByID)

	// --- Databases ---
	mux.HandleFunc("/databases", app.handleDatabases)
	mux.HandleFunc("/databases/", app.handleDatabaseByID)

	// --- Actions and audit ---
	mux.HandleFunc("/actions", app.handleDispatch)
	mux.HandleFunc("/actions/confirm", app.handleConfirm)
	mux.HandleFunc("/audit", app.handleAudit)

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(defaultMaxRequestBodyBytes, handler)
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "corius-http")
	}

	app.Server = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return app, nil
}

// Close drains the store's pending flush and closes the gateway.
func (app *App) Close(ctx context.Context) error {
	return app.Store.Close(ctx)
}

func (app *App) handleItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	includeArchived := q.Get("archived") == "true"
	var items []workspace.Item
	switch {
	case q.Get("container") != "":
		items = app.Store.ItemsInContainer(q.Get("container"), includeArchived)
	case q.Get("parent") != "":
		items = app.Store.ItemsWithParent(q.Get("parent"), includeArchived)
	case q.Get("type") != "":
		items = app.Store.ItemsOfType(workspace.ItemType(q.Get("type")), includeArchived)
	default:
		items = app.Store.AllItems(includeArchived)
	}
	// Deterministic order for list consumers.
	items = query.Evaluate(items, nil, nil, query.Env{})
	writeJSON(w, items)
}

func (app *App) handleItemByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/items/")
	if rest == "recent" {
		limit := intQuery(r, "limit", 20)
		writeJSON(w, app.Store.RecentItems(limit))
		return
	}
	it, ok := app.Store.ItemByID(rest)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, it)
}

func (app *App) handleDatabases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	dbs := app.Store.Databases()
	sort.Slice(dbs, func(i, j int) bool { return dbs[i].ID < dbs[j].ID })
	writeJSON(w, dbs)
}

func (app *App) handleDatabaseByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/databases/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	db, ok := app.Store.DatabaseByID(parts[0])
	if !ok {
		writeJSONError(w, http.StatusNotFound, "database not found")
		return
	}

	if len(parts) >= 2 && parts[1] == "query" {
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var body struct {
			ViewID  string             `json:"view_id"`
			Filters []workspace.Filter `json:"filters"`
			Sorts   []workspace.Sort   `json:"sorts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		filters, sorts := body.Filters, body.Sorts
		if body.ViewID != "" {
			view, ok := db.ViewByID(body.ViewID)
			if !ok {
				writeJSONError(w, http.StatusNotFound, "view not found")
				return
			}
			filters = append(append([]workspace.Filter{}, view.Filters...), filters...)
			sorts = append(append([]workspace.Sort{}, view.Sorts...), sorts...)
		}
		rows := app.Store.ItemsInContainer(db.ID, false)
		env := query.Env{Schema: db.Schema, Lookup: app.Store.ItemByID}
		rows = query.Evaluate(rows, filters, sorts, env)
		writeJSON(w, map[string]any{"rows": rows})
		return
	}

	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, db)
}

func (app *App) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req agent.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	out := app.Agent.Dispatch(r.Context(), req)
	app.Hub.PublishJSON(map[string]any{"type": "action_update", "action_id": out.ActionID, "success": out.Success})
	writeJSON(w, out)
}

func (app *App) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Token       string `json:"token"`
		Accept      bool   `json:"accept"`
		ChoiceIndex *int   `json:"choice_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	choice := -1
	if body.ChoiceIndex != nil {
		choice = *body.ChoiceIndex
	}
	out := app.Agent.Confirm(r.Context(), body.Token, body.Accept, choice)
	app.Hub.PublishJSON(map[string]any{"type": "action_update", "action_id": out.ActionID, "success": out.Success})
	writeJSON(w, out)
}

func (app *App) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, app.Agent.RecentEntries(intQuery(r, "limit", 50)))
}

func intQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
