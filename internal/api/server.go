package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"armory/internal/auth"
	"armory/internal/config"
	"armory/internal/progression"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const identityContextKey contextKey = "identity"

// CatalogReader serves the read-only catalog listing.
type CatalogReader interface {
	CatalogItems(ctx context.Context) ([]progression.Item, error)
	ResearchEdges(ctx context.Context) ([]progression.ResearchEdge, error)
}

type Server struct {
	cfg     config.APIConfig
	log     *slog.Logger
	auth    *auth.Verifier
	engine  *progression.Service
	catalog CatalogReader
	mux     *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, verifier *auth.Verifier, engine *progression.Service, catalog CatalogReader) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		auth:    verifier,
		engine:  engine,
		catalog: catalog,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/catalog", s.handleCatalog)
		r.Post("/session", s.handleSession)

		r.Get("/me", s.handleProfile)
		r.Get("/me/items", s.handleListOwned)
		r.Get("/me/unlocks", s.handleListUnlocked)
		r.Get("/me/ledger", s.handleLedger)
		r.Put("/me/active/{itemID}", s.handleSetActive)
		r.Post("/me/items/{code}/buy", s.handleBuy)
		r.Post("/me/items/{itemID}/sell", s.handleSell)
		r.Delete("/me/items/{itemID}", s.handleRemove)
		r.Post("/me/items/{itemID}/convert-free-xp", s.handleConvertFreeXP)
		r.Post("/me/research", s.handleResearch)

		r.Post("/matches", s.handleStartMatch)
		r.Post("/matches/{id}/report", s.handleReport)
		r.Post("/matches/{id}/end", s.handleEndMatch)
		r.Get("/matches/{id}/participants", s.handleParticipants)

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/admin/grant", s.handleGrant)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := s.auth.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), identityContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := identityFromContext(r.Context())
		if err != nil || !id.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identityFromContext(ctx context.Context) (auth.Identity, error) {
	id, ok := ctx.Value(identityContextKey).(auth.Identity)
	if !ok || id.AccountID <= 0 {
		return auth.Identity{}, errors.New("missing auth context")
	}
	return id, nil
}

// writeDomainError maps the engine's error kinds onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch progression.KindOf(err) {
	case progression.KindValidation:
		status = http.StatusBadRequest
	case progression.KindNotFound:
		status = http.StatusNotFound
	case progression.KindConflict:
		status = http.StatusConflict
	case progression.KindPrecondition:
		switch {
		case errors.Is(err, progression.ErrItemLocked):
			status = http.StatusForbidden
		case errors.Is(err, progression.ErrMatchEnded):
			status = http.StatusConflict
		default:
			status = http.StatusBadRequest
		}
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
		writeJSON(w, status, map[string]any{"error": "internal error", "kind": progression.KindInternal})
		return
	}
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(err.Error()), "kind": progression.KindOf(err)})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return id, nil
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
