package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"mathengine/internal/auth"
	"mathengine/internal/database"
	"mathengine/internal/models"
)

type AuthHandler struct {
	users  UserStore
	issuer *auth.Issuer
}

func NewAuthHandler(users UserStore, issuer *auth.Issuer) *AuthHandler {
	return &AuthHandler{users: users, issuer: issuer}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if strings.TrimSpace(req.Login) == "" || strings.TrimSpace(req.Password) == "" {
		SendErrorResponse(w, http.StatusBadRequest, "Login and password required")
		return
	}

	if _, err := h.users.CreateUser(r.Context(), req.Login, req.Password); err != nil {
		if errors.Is(err, database.ErrUserExists) {
			SendErrorResponse(w, http.StatusConflict, "User already exists")
			return
		}
		log.Printf("Ошибка регистрации %s: %v", req.Login, err)
		SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	SendJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

// Login обрабатывает запрос на вход в систему
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, http.StatusBadRequest, "Invalid request")
		return
	}

	user, err := h.users.GetUser(r.Context(), req.Login)
	if err != nil {
		log.Printf("Ошибка получения пользователя %s: %v", req.Login, err)
		SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user == nil || !database.CheckPasswordHash(req.Password, user.Password) {
		SendErrorResponse(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.issuer.GenerateToken(user.ID, user.Login)
	if err != nil {
		SendErrorResponse(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	SendJSON(w, http.StatusOK, models.AuthResponse{Token: token})
}

// TokenInfo возвращает информацию о времени жизни токена
func (h *AuthHandler) TokenInfo(w http.ResponseWriter, r *http.Request) {
	SendJSON(w, http.StatusOK, map[string]int{
		"expirationMinutes": int(h.issuer.TTL().Minutes()),
	})
}
