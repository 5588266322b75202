package httpapi

import (
	"errors"
	"net/http"

	"lcamail-engine/internal/store"
)

type LogosHandler struct {
	Deps
}

func (h LogosHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := urlParam(r, "key")
	if key == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_key", "missing key")
		return
	}

	ct, b, err := store.GetLogo(r.Context(), h.DB, key)
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if ct == "" {
		ct = "image/*"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "public, max-age=604800")
	_, _ = w.Write(b)
}
