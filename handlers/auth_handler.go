package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/questforge/dm-companion/services"
)

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

type AuthHandler struct {
	authService services.AuthService
	jwtSecret   []byte
}

func NewAuthHandler(authService services.AuthService, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		jwtSecret:   []byte(jwtSecret),
	}
}

// Register godoc
// @Summary      Регистрация нового пользователя
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body services.RegisterInput true "Данные регистрации"
// @Success      201 {object} map[string]interface{}
// @Router       /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput

	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if input.Username == "" || input.Email == "" || input.Password == "" {
		badRequestResponse(w, r, errors.New("username, email, and password are required"))
		return
	}

	user, err := h.authService.Register(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	user.PasswordHash = ""
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"user": user}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Login godoc
// @Summary      Вход по email и паролю
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body services.LoginInput true "Учетные данные"
// @Success      200 {object} map[string]interface{}
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput

	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if input.Email == "" || input.Password == "" {
		badRequestResponse(w, r, errors.New("email and password are required"))
		return
	}

	user, err := h.authService.Login(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	accessToken, err := h.signToken(user.ID, "access", accessTokenTTL)
	if err != nil {
		serverErrorResponse(w, r, fmt.Errorf("failed to sign access token: %w", err))
		return
	}
	refreshToken, err := h.signToken(user.ID, "refresh", refreshTokenTTL)
	if err != nil {
		serverErrorResponse(w, r, fmt.Errorf("failed to sign refresh token: %w", err))
		return
	}

	response := jsonResponse{
		"user":          user,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Refresh godoc
// @Summary      Обмен refresh-токена на новую пару токенов
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.RefreshToken == "" {
		badRequestResponse(w, r, errors.New("refresh_token is required"))
		return
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(input.RefreshToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return h.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		unauthorizedResponse(w, r, "invalid or expired refresh token")
		return
	}
	if typ, _ := claims["typ"].(string); typ != "refresh" {
		unauthorizedResponse(w, r, "token is not a refresh token")
		return
	}
	userIDFloat, ok := claims["user_id"].(float64)
	if !ok || userIDFloat <= 0 {
		unauthorizedResponse(w, r, "invalid refresh token claims")
		return
	}
	userID := int(userIDFloat)

	accessToken, err := h.signToken(userID, "access", accessTokenTTL)
	if err != nil {
		serverErrorResponse(w, r, fmt.Errorf("failed to sign access token: %w", err))
		return
	}
	refreshToken, err := h.signToken(userID, "refresh", refreshTokenTTL)
	if err != nil {
		serverErrorResponse(w, r, fmt.Errorf("failed to sign refresh token: %w", err))
		return
	}

	response := jsonResponse{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AuthHandler) signToken(userID int, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"typ":     typ,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
}
