package httpapi

import (
	"net/http"
	"path/filepath"

	"lcamail-engine/internal/config"
)

type ConfigHandler struct {
	Deps
}

func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.config().Redacted())
}

func (h ConfigHandler) Path(w http.ResponseWriter, r *http.Request) {
	abs, _ := filepath.Abs(h.UserCfgPath)
	WriteJSON(w, http.StatusOK, map[string]any{"path": abs})
}

func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	_, vr := config.NormalizeAndValidate(h.config())
	WriteJSON(w, http.StatusOK, vr)
}
