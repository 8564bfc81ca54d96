package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Handlers serves the ops endpoints from coordinator state.
type Handlers struct {
	src StatusSource
}

// HandleHealthz responds to liveness probe requests.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports readiness: the bot is ready once the gateway delivered
// the ready event and the bot's own identity is known.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"gateway", func() error {
			if !h.src.GatewayReady() {
				return fmt.Errorf("gateway ready event not received")
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus returns a small JSON snapshot for dashboards and debugging.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	botUser := ""
	if id, err := h.src.BotUserID(); err == nil {
		botUser = id
	}
	resp := map[string]any{
		"gateway_ready":   h.src.GatewayReady(),
		"bot_user_id":     botUser,
		"active_bindings": h.src.ActiveBindings(),
		"uptime_seconds":  int(time.Since(h.src.StartedAt()).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
