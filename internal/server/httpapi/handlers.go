package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/validation"
)

const maxBodyBytes = 1 << 16

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid   bool     `json:"valid"`
	UserID  string   `json:"userId,omitempty"`
	Subject string   `json:"subject,omitempty"`
	Roles   []string `json:"roles,omitempty"`
}

type authResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
	Username     string `json:"username"`
	Email        string `json:"email"`
}

type meResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Roles       []string   `json:"roles"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func toAuthResponse(p *services.TokenPair) authResponse {
	return authResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn,
		Username:     p.UserName,
		Email:        p.Email,
	}
}

func decode(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: malformed JSON body", common.ErrInvalidInput)
	}
	return nil
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validation.Struct(validation.Registration{Username: req.Username, Email: req.Email, Password: req.Password}); err != nil {
		h.fail(w, r, err)
		return
	}

	pair, err := h.sessions.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuthResponse(pair))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validation.Struct(validation.Credentials{Username: req.Username, Password: req.Password}); err != nil {
		h.fail(w, r, err)
		return
	}

	pair, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(pair))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validation.Struct(validation.Refresh{RefreshToken: req.RefreshToken}); err != nil {
		h.fail(w, r, err)
		return
	}

	pair, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(pair))
}

// validate answers for peers that hold no key material. An unusable token is
// a normal answer, not an error.
func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	p, ok := h.validator.Validate(req.Token)
	if !ok {
		writeJSON(w, http.StatusOK, validateResponse{Valid: false})
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: true, UserID: p.UserID, Subject: p.UserName, Roles: p.Roles})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	if err := h.sessions.Logout(r.Context(), p.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	user, err := h.sessions.Me(r.Context(), p)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			unauthorized(w, r)
			return
		}
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:          user.ID,
		Username:    user.UserName,
		Email:       user.Email,
		Roles:       user.Roles,
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}
