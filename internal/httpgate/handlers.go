package httpgate

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"sessiongate/internal/loginguard"
	"sessiongate/internal/security"
	"sessiongate/internal/session"
)

// AuthHandler exposes the session service over HTTP.
type AuthHandler struct {
	svc *session.Service
	log *zap.Logger
	// lockoutWindow is surfaced as Retry-After on lockout responses.
	lockoutWindow time.Duration
}

// NewAuthHandler returns an AuthHandler. lockoutWindow <= 0 uses the guard default.
func NewAuthHandler(svc *session.Service, log *zap.Logger, lockoutWindow time.Duration) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if lockoutWindow <= 0 {
		lockoutWindow = loginguard.DefaultWindow
	}
	return &AuthHandler{svc: svc, log: log, lockoutWindow: lockoutWindow}
}

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type tokenPairResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    int64    `json:"expires_at"`
	Subject      string   `json:"subject"`
	Roles        []string `json:"roles"`
}

func pairResponse(res *session.AuthResult) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt.Unix(),
		Subject:      res.Subject,
		Roles:        res.Roles,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Register(r.Context(), session.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, pairResponse(res))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, pairResponse(res))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "refresh_token is required")
		return
	}
	res, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, pairResponse(res))
}

// Logout revokes the presented token. The endpoint is idempotent; a token
// that no longer decodes still yields 204.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := TokenFrom(r.Context())
	if !ok {
		token = ExtractToken(r)
	}
	if err := h.svc.Logout(r.Context(), token); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing credential")
		return
	}
	var req passwordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	token, _ := TokenFrom(r.Context())
	err := h.svc.ChangePassword(r.Context(), claims.Subject, req.CurrentPassword, req.NewPassword, token)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing credential")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"subject":      claims.Subject,
		"display_name": claims.DisplayName,
		"roles":        claims.Roles,
		"token_use":    claims.TokenUse,
		"expires_at":   claims.ExpiresAt.Unix(),
	})
}

type revokeRequest struct {
	Token string `json:"token"`
}

// RevokeToken lets an operator revoke an arbitrary token.
func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "token is required")
		return
	}
	if err := h.svc.Logout(r.Context(), req.Token); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrIdentifierTaken):
		writeError(w, r, http.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, CodeInvalidCredentials, "invalid credentials")
	case errors.Is(err, session.ErrTooManyAttempts):
		w.Header().Set("Retry-After", strconv.Itoa(int(h.lockoutWindow/time.Second)))
		writeError(w, r, http.StatusTooManyRequests, CodeLockedOut, "too many failed login attempts")
	case errors.Is(err, session.ErrTokenRevoked):
		writeError(w, r, http.StatusUnauthorized, CodeTokenRevoked, "token revoked")
	case errors.Is(err, session.ErrNotRefreshToken):
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "refresh requires a refresh token")
	case errors.Is(err, session.ErrPrincipalInactive):
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "principal inactive")
	case errors.Is(err, security.ErrTokenExpired):
		writeError(w, r, http.StatusUnauthorized, CodeTokenExpired, "token expired")
	case errors.Is(err, security.ErrTokenMalformed):
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "invalid token")
	case isValidationError(err):
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
	default:
		h.log.Error("session service", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func isValidationError(err error) bool {
	var ve session.ValidationError
	return errors.As(err, &ve)
}
