package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/legiswatch/notify/pkg/dispatch"
)

func (rt *router) handleDispatchRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	var override *uuid.UUID
	if raw := r.URL.Query().Get("event_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "event_id must be a valid UUID")
			return
		}
		override = &id
	}

	result, err := rt.dispatcher.RunDispatch(ctx, limit, override)
	if err != nil {
		if errors.Is(err, dispatch.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		rt.log.ErrorContext(ctx, "dispatch run failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "dispatch run failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
