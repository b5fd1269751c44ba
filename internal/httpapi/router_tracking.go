package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dwizi/permit-tracker/internal/store"
	"github.com/dwizi/permit-tracker/internal/tracking"
)

func (r *router) handleTracking(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store is unavailable"})
		return
	}

	userID := strings.TrimSpace(req.URL.Query().Get("user_id"))
	if userID != "" {
		list, err := r.deps.Store.GetTrackingList(req.Context(), userID)
		if errors.Is(err, store.ErrTrackingListNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tracking list not found"})
			return
		}
		if err != nil {
			r.deps.Logger.Error("read tracking list failed", "user_id", userID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "read failed"})
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}

	lists, err := r.deps.Store.ListTrackingLists(req.Context())
	if err != nil {
		r.deps.Logger.Error("list tracking lists failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "read failed"})
		return
	}
	if lists == nil {
		lists = []tracking.List{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(lists), "lists": lists})
}
