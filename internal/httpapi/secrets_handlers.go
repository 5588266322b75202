package httpapi

import (
	"net/http"

	"lcamail-engine/internal/secrets"
)

type SecretsHandler struct {
	Deps
}

type setSMTPPasswordReq struct {
	Password string `json:"password"`
}

func (h SecretsHandler) SetSMTPPassword(w http.ResponseWriter, r *http.Request) {
	var req setSMTPPasswordReq
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	c := claimsFrom(r.Context())
	if err := secrets.SetSMTPPassword(h.config(), c.Email, req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keyring", "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) DeleteSMTPPassword(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r.Context())
	if err := secrets.DeleteSMTPPassword(h.config(), c.Email); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "keyring", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
