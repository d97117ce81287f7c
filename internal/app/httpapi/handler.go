// Package httpapi exposes the REST surface: auth, verse recording, progress,
// leaderboard, scripture proxy, and the billing webhook.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	app "github.com/lampstack/versekeeper/internal/app"
	"github.com/lampstack/versekeeper/internal/app/domain/rank"
	"github.com/lampstack/versekeeper/internal/app/services/accounts"
	"github.com/lampstack/versekeeper/internal/app/services/bibletext"
	"github.com/lampstack/versekeeper/internal/app/services/billing"
	leaderboardsvc "github.com/lampstack/versekeeper/internal/app/services/leaderboard"
	"github.com/lampstack/versekeeper/internal/app/services/progression"
)

// errServer is the opaque body for internal failures on read paths; the
// underlying detail stays in the logs.
var errServer = errors.New("server error")

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/register", h.register)
	mux.HandleFunc("/auth/login", h.login)
	mux.HandleFunc("/ranks", h.ranks)
	mux.HandleFunc("/verses", h.authed(h.verses))
	mux.HandleFunc("/progress", h.authed(h.progress))
	mux.HandleFunc("/progress/history", h.authed(h.history))
	mux.HandleFunc("/leaderboard", h.authed(h.leaderboard))
	mux.HandleFunc("/bible/passage", h.authed(h.biblePassage))
	mux.HandleFunc("/bible/search", h.authed(h.bibleSearch))
	mux.HandleFunc("/billing/webhook", h.billingWebhook)
	mux.HandleFunc("/healthz", h.healthz)
	return RequestID(mux)
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, token, err := h.app.Accounts.Register(r.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrCredentialsTaken) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":  u,
		"token": token,
	})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, token, err := h.app.Accounts.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeError(w, http.StatusInternalServerError, errServer)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":  u,
		"token": token,
	})
}

func (h *handler) ranks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ranks": rank.All()})
}

func (h *handler) verses(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			VerseID     string `json:"verse_id"`
			Reference   string `json:"verse_reference"`
			Text        string `json:"verse_text"`
			ContextText string `json:"context_text"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		res, err := h.app.Progression.Record(r.Context(), userID, progression.RecordInput{
			VerseID:     payload.VerseID,
			Reference:   payload.Reference,
			Text:        payload.Text,
			ContextText: payload.ContextText,
		})
		if err != nil {
			if errors.Is(err, progression.ErrUserNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			if errors.Is(err, progression.ErrInvalidInput) {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			// Persistence details stay out of the response body.
			writeError(w, http.StatusInternalServerError, fmt.Errorf("server error while saving progress"))
			return
		}

		status := http.StatusCreated
		if res.AlreadyMemorized {
			status = http.StatusOK
		}
		writeJSON(w, status, map[string]interface{}{
			"verse":             res.Verse,
			"verses_memorized":  res.User.VersesMemorized,
			"rank":              res.Rank,
			"rank_up":           res.RankUp,
			"previous_rank":     res.PreviousRank,
			"already_memorized": res.AlreadyMemorized,
		})

	case http.MethodGet:
		verses, err := h.app.Progression.Verses(r.Context(), userID)
		if err != nil {
			writeProgressionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"verses": verses})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) progress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	report, err := h.app.Progression.Progress(r.Context(), userIDFrom(r))
	if err != nil {
		writeProgressionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":             report.User.ID,
		"username":            report.User.Username,
		"verses_memorized":    report.User.VersesMemorized,
		"current_rank":        report.Rank.Current,
		"progress":            report.Rank.Progress,
		"verses_to_next_rank": report.Rank.VersesToNext,
	})
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	entries, err := h.app.Progression.History(r.Context(), userIDFrom(r))
	if err != nil {
		writeProgressionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

func (h *handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	page, err := h.app.Leaderboard.Query(r.Context(), limit, offset, userIDFrom(r))
	if err != nil {
		if errors.Is(err, leaderboardsvc.ErrInvalidPage) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, errServer)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) biblePassage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	passage, err := h.app.BibleText.Lookup(r.Context(), userIDFrom(r),
		r.URL.Query().Get("reference"), r.URL.Query().Get("translation"))
	if err != nil {
		writeBibleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, passage)
}

func (h *handler) bibleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	results, err := h.app.BibleText.Search(r.Context(), userIDFrom(r),
		r.URL.Query().Get("query"), r.URL.Query().Get("translation"))
	if err != nil {
		writeBibleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (h *handler) billingWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer r.Body.Close()

	u, err := h.app.Billing.HandleWebhook(r.Context(), r.Header.Get("X-Webhook-Signature"), payload)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrBadSignature):
			writeError(w, http.StatusUnauthorized, err)
		case errors.Is(err, billing.ErrUserNotFound):
			writeError(w, http.StatusNotFound, err)
		default:
			writeError(w, http.StatusBadRequest, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    u.ID,
		"is_premium": u.IsPremium,
	})
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authed wraps an endpoint with bearer-token verification and stashes the
// user ID in the request context.
func (h *handler) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("missing bearer token"))
			return
		}
		userID, err := h.app.Accounts.VerifyToken(parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid token"))
			return
		}
		next(w, r.WithContext(withUserID(r.Context(), userID)))
	}
}

func writeProgressionError(w http.ResponseWriter, err error) {
	if errors.Is(err, progression.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, errServer)
}

func writeBibleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bibletext.ErrPremiumRequired):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, bibletext.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err)
	case errors.Is(err, bibletext.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusBadGateway, err)
	}
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
