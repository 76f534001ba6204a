package handlers

import (
	"net/http"

	"github.com/chromabot/referee/internal/api/middleware"
	"github.com/chromabot/referee/internal/auth"
	"github.com/chromabot/referee/pkg/utils"

	"github.com/gorilla/mux"
)

// AuthHandler exposes operator registration, login, and session endpoints.
type AuthHandler struct {
	authService *auth.AuthService
}

// NewAuthHandler создает новый обработчик аутентификации операторов.
func NewAuthHandler(authService *auth.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.WriteValidationError(w, "Invalid request format", map[string]string{"body": "Request body must be valid JSON"})
		return
	}
	if req.Username == "" {
		utils.WriteValidationError(w, "Username is required", map[string]string{"username": "Username cannot be empty"})
		return
	}
	if len(req.Password) < 6 {
		utils.WriteValidationError(w, "Password is too short", map[string]string{"password": "Password must be at least 6 characters long"})
		return
	}

	user, err := h.authService.Register(&req)
	if err != nil {
		if err.Error() == "username already exists" {
			utils.WriteValidationError(w, "Username already exists", map[string]string{"username": "This username is already taken"})
			return
		}
		utils.WriteInternalError(w, "Failed to create user")
		return
	}

	utils.WriteCreated(w, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.WriteValidationError(w, "Invalid request format", map[string]string{"body": "Request body must be valid JSON"})
		return
	}
	if req.Username == "" || req.Password == "" {
		utils.WriteValidationError(w, "Username and password are required", map[string]string{"username": "required", "password": "required"})
		return
	}

	user, token, err := h.authService.Login(&req)
	if err != nil {
		if err.Error() == "invalid credentials" {
			utils.WriteUnauthorized(w, "Invalid username or password")
			return
		}
		utils.WriteInternalError(w, "Login failed")
		return
	}

	utils.WriteSuccess(w, map[string]interface{}{"user": user, "token": token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	token := extractTokenFromHeader(authHeader)
	if token == "" {
		utils.WriteUnauthorized(w, "Invalid authorization header format")
		return
	}

	if err := h.authService.Logout(token); err != nil {
		utils.WriteInternalError(w, "Logout failed")
		return
	}

	utils.WriteSuccess(w, map[string]string{"message": "Logged out successfully"})
}

func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteUnauthorized(w, "")
		return
	}
	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		utils.WriteNotFound(w, "User not found")
		return
	}
	utils.WriteSuccess(w, user)
}

func extractTokenFromHeader(authHeader string) string {
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ""
}

// RegisterRoutes registers operator auth routes on router.
func (h *AuthHandler) RegisterRoutes(router *mux.Router, jwtSecret string) {
	authRouter := router.PathPrefix("/api/v1/auth").Subrouter()
	authRouter.HandleFunc("/register", h.Register).Methods("POST")
	authRouter.HandleFunc("/login", h.Login).Methods("POST")

	protected := authRouter.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(jwtSecret))
	protected.HandleFunc("/logout", h.Logout).Methods("POST")
	protected.HandleFunc("/profile", h.GetProfile).Methods("GET")
}
