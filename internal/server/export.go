package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/joseph-ayodele/household-docs/internal/repository"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

type TransactionLister interface {
	List(ctx context.Context, householdID string, limit int) ([]repository.StoredTransaction, error)
}

type TransactionExporter interface {
	TransactionsXLSX(txs []repository.StoredTransaction) ([]byte, error)
}

// HTTPDeps are the collaborators of the HTTP side. Nil members disable
// their routes; /healthz always answers.
type HTTPDeps struct {
	Metrics      http.Handler
	DB           HealthChecker
	Transactions TransactionLister
	Export       TransactionExporter
	Logger       *slog.Logger
}

// NewRouter builds the HTTP surface: metrics, health and transaction export.
func NewRouter(d HTTPDeps) *mux.Router {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := &httpHandlers{deps: d}

	r := mux.NewRouter()
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	if d.Transactions != nil {
		r.HandleFunc("/households/{household}/transactions", h.listTransactions).Methods(http.MethodGet)
		if d.Export != nil {
			r.HandleFunc("/households/{household}/transactions.xlsx", h.exportTransactions).Methods(http.MethodGet)
		}
	}
	return r
}

type httpHandlers struct {
	deps HTTPDeps
}

func (h *httpHandlers) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.DB != nil {
		if err := h.deps.DB.HealthCheck(r.Context(), 2*time.Second); err != nil {
			h.deps.Logger.Warn("http.healthz.db_failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *httpHandlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	txs, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (h *httpHandlers) exportTransactions(w http.ResponseWriter, r *http.Request) {
	txs, ok := h.load(w, r)
	if !ok {
		return
	}
	xlsx, err := h.deps.Export.TransactionsXLSX(txs)
	if err != nil {
		h.deps.Logger.Error("export.xlsx.failed", "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}

func (h *httpHandlers) load(w http.ResponseWriter, r *http.Request) ([]repository.StoredTransaction, bool) {
	household := mux.Vars(r)["household"]
	limit := repository.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return nil, false
		}
		limit = n
	}
	txs, err := h.deps.Transactions.List(r.Context(), household, limit)
	if err != nil {
		h.deps.Logger.Error("http.transactions.list_failed", "household_id", household, "error", err)
		http.Error(w, "could not list transactions", http.StatusInternalServerError)
		return nil, false
	}
	return txs, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
