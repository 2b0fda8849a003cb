package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BrokerStatus reports whether the outbound event connection is up.
type BrokerStatus interface {
	Connected() bool
}

// HealthHandler exposes Kubernetes-style liveness and readiness endpoints.
type HealthHandler struct {
	store  Pinger
	redis  redis.Cmdable
	broker BrokerStatus
}

// NewHealthHandler checks store on readiness; redis and broker are optional.
func NewHealthHandler(store Pinger, redis redis.Cmdable, broker BrokerStatus) *HealthHandler {
	return &HealthHandler{store: store, redis: redis, broker: broker}
}

// Live always reports OK: if the process is up, it's live.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready checks the proposal store, Redis and the event broker.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		RespondError(w, r, http.StatusServiceUnavailable, "health/store-unavailable", "proposal store unavailable")
		return
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "health/redis-unavailable", "redis unavailable")
			return
		}
	}

	if h.broker != nil && !h.broker.Connected() {
		RespondError(w, r, http.StatusServiceUnavailable, "health/broker-unavailable", "event broker unavailable")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
