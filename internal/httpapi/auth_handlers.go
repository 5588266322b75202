package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"lcamail-engine/internal/auth"
)

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthHandler struct {
	Deps
}

func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	u, err := h.Auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.Log.Info("user registered", zap.Int64("user_id", u.ID))
	WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    u,
	})
}

func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	tok, u, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	ttl := h.Auth.Tokens().TTL()
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    tok,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	WriteJSON(w, http.StatusOK, map[string]any{"token": tok, "user": u})
}

func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r.Context())
	WriteJSON(w, http.StatusOK, map[string]any{"userId": c.UserID, "email": c.Email})
}
