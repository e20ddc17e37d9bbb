package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"armory/internal/progression"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	items, err := s.catalog.CatalogItems(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	edges, err := s.catalog.ResearchEdges(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "research": edges})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in sessionRequest
	if !decodeValid(w, r, &in, true) {
		return
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = id.Username
	}
	out, err := s.engine.EnsureAccount(r.Context(), id.AccountID, username)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.engine.Profile(r.Context(), id.AccountID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListOwned(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.engine.ListOwned(r.Context(), id.AccountID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListUnlocked(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.engine.ListUnlocked(r.Context(), id.AccountID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unlocks": out})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
	}
	out, err := s.engine.Ledger(r.Context(), id.AccountID, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	active, err := s.engine.SetActive(r.Context(), id.AccountID, itemID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active_item_id": active})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.engine.Buy(r.Context(), id.AccountID, chi.URLParam(r, "code"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleRelease(w, r, s.engine.Sell)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	s.handleRelease(w, r, s.engine.Remove)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request, release func(ctx context.Context, accountID, itemID int64) (progression.ReleaseResult, error)) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := release(r.Context(), id.AccountID, itemID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConvertFreeXP(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in convertRequest
	if !decodeValid(w, r, &in, false) {
		return
	}
	out, err := s.engine.ConvertFreeXP(r.Context(), id.AccountID, itemID, in.Amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in researchRequest
	if !decodeValid(w, r, &in, false) {
		return
	}
	out, err := s.engine.Unlock(r.Context(), id.AccountID, in.SuccessorItemID, in.PredecessorItemID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStartMatch(w http.ResponseWriter, r *http.Request) {
	var in startMatchRequest
	if !decodeValid(w, r, &in, true) {
		return
	}
	out, err := s.engine.StartMatch(r.Context(), in.Map)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	matchID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in reportRequest
	if !decodeValid(w, r, &in, false) {
		return
	}
	out, err := s.engine.ResolveMatch(r.Context(), progression.ReportInput{
		MatchID:   matchID,
		AccountID: id.AccountID,
		ItemCode:  in.ItemCode,
		Team:      in.Team,
		Result:    in.Result,
		Kills:     in.Kills,
		Damage:    in.Damage,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEndMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.engine.EndMatch(r.Context(), matchID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	matchID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.engine.Participants(r.Context(), matchID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": out})
}

func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	var in grantRequest
	if !decodeValid(w, r, &in, false) {
		return
	}
	out, err := s.engine.Grant(r.Context(), in.AccountID, in.ItemCode)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
