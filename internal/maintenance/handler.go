package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"cinema-reservation/internal/auth"
	"cinema-reservation/internal/observability"
)

// SweepHandler deletes revocation records whose token expiry has passed the
// retention cutoff. The ledger is append-only during normal operation; this
// cron-gated endpoint is the only thing that shrinks it.
type SweepHandler struct {
	repo       *auth.Repository
	logger     *observability.Logger
	cronSecret string
	retention  time.Duration
	batchSize  int
}

func NewSweepHandler(
	repo *auth.Repository,
	logger *observability.Logger,
	cronSecret string,
	retention time.Duration,
	batchSize int,
) *SweepHandler {
	return &SweepHandler{
		repo:       repo,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		retention:  retention,
		batchSize:  batchSize,
	}
}

func (h *SweepHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	deleted, err := h.repo.SweepExpiredRevocations(r.Context(), h.retention, h.batchSize)
	if err != nil {
		h.logger.Error("revocation_sweep_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "sweep failed"})
		return
	}

	h.logger.Info("revocation_sweep_completed", map[string]any{
		"deleted_revocations": deleted,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"deleted_revocations": deleted,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
