package httpapi

import (
	"net/http"
)

type LCAHandler struct {
	Deps
}

// Data serves one page of records. Query: page, pageSize, filters (JSON).
func (h LCAHandler) Data(w http.ResponseWriter, r *http.Request) {
	filters, err := lcaParseFilters(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	page, err := h.Dataset.Query(r.Context(),
		queryInt(r, "page", 1),
		queryInt(r, "pageSize", 0),
		filters,
	)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

func (h LCAHandler) FilterValues(w http.ResponseWriter, r *http.Request) {
	vals, err := h.Index.Values(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, vals)
}

func (h LCAHandler) Stats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Dataset.Stats())
}

func (h LCAHandler) Record(w http.ResponseWriter, r *http.Request) {
	rec, ok, err := h.Dataset.Lookup(r.Context(), urlParam(r, "caseNumber"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !ok {
		WriteError(w, r, http.StatusNotFound, "not_found", "no record with that case number")
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}
