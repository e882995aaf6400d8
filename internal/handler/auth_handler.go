package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/botclash/internal/auth"
)

// AuthHandler exchanges the admin token for operator JWTs.
type AuthHandler struct {
	jwtMgr *auth.JWTManager
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(jwtMgr *auth.JWTManager) *AuthHandler {
	return &AuthHandler{jwtMgr: jwtMgr}
}

type tokenRequest struct {
	AdminToken string `json:"adminToken"`
	Operator   string `json:"operator"`
}

// Token handles POST /api/auth/token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Operator == "" {
		writeError(w, http.StatusBadRequest, "operator is required")
		return
	}

	tok, err := h.jwtMgr.Exchange(req.AdminToken, req.Operator)
	if err != nil {
		log.Warn().Str("operator", req.Operator).Msg("Rejected admin token exchange")
		writeError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}

	writeJSON(w, http.StatusOK, tok)
}
