package listener

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pixil98/go-log"
	"github.com/pixil98/go-plaza/internal/auth"
	"github.com/pixil98/go-plaza/internal/game"
)

const DefaultVoiceTokenTTL = 10 * time.Minute

// Stats reports the live player and room counts.
type Stats interface {
	Stats() (players, rooms int)
}

// TokenIssuer mints short lived voice grants for an account in one room.
type TokenIssuer interface {
	Issue(accountId, room string, ttl time.Duration) (string, error)
}

// VoiceConfig enables the voice token endpoint when URL is set.
type VoiceConfig struct {
	URL      string
	Verifier auth.Verifier
	Issuer   TokenIssuer
	TTL      time.Duration
}

func (v VoiceConfig) enabled() bool {
	return v.URL != "" && v.Verifier != nil && v.Issuer != nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Players int    `json:"players"`
	Rooms   int    `json:"rooms"`
}

type voiceTokenResponse struct {
	URL   string `json:"url"`
	Room  string `json:"room"`
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func healthHandler(stats Stats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		players, rooms := stats.Stats()
		writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Players: players, Rooms: rooms})
	}
}

func voiceTokenHandler(cfg VoiceConfig) http.HandlerFunc {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultVoiceTokenTTL
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, r, http.StatusMethodNotAllowed, errorResponse{Error: "method_not_allowed"})
			return
		}
		if !cfg.enabled() {
			writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: "voice_unavailable"})
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		accountId, err := cfg.Verifier.Verify(token)
		if err != nil {
			writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		room := game.SanitizeRoomId(r.URL.Query().Get("room"))
		grant, err := cfg.Issuer.Issue(accountId, room, ttl)
		if err != nil {
			log.GetLogger(r.Context()).WithError(err).WithField("account", accountId).Error("issuing voice token")
			writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal"})
			return
		}

		writeJSON(w, r, http.StatusOK, voiceTokenResponse{URL: cfg.URL, Room: room, Token: grant})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.GetLogger(r.Context()).WithError(err).Debug("writing response")
	}
}
