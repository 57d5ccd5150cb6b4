package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/presidence-ga/iasted/pkg/provider/realtime"
)

// tokenResponse is the JSON body served by [TokenHandler].
type tokenResponse struct {
	Secret    string     `json:"secret,omitempty"`
	URL       string     `json:"url,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// TokenHandler serves fresh ephemeral realtime credentials to dashboard
// clients that connect to the vendor directly instead of through the
// gateway. Every request mints a brand-new credential; nothing is cached or
// reused, and the long-lived API key never leaves the server.
func TokenHandler(tokens realtime.TokenSource, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "gateway.token")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}

		cred, err := tokens.Token(r.Context())
		if err != nil {
			log.Warn("credential mint failed", "error", err)
			http.Error(w, `{"error":"credential mint failed"}`, http.StatusBadGateway)
			return
		}

		resp := tokenResponse{
			Secret: cred.Secret,
			URL:    cred.URL,
		}
		if !cred.ExpiresAt.IsZero() {
			exp := cred.ExpiresAt
			resp.ExpiresAt = &exp
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warn("credential write failed", "error", err)
		}
	})
}
