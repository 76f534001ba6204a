package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chromabot/referee/pkg/database"
	"github.com/chromabot/referee/pkg/logger"
	"github.com/chromabot/referee/pkg/redis"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// AuthService аутентифицирует операторов движка (отдельно от игроков).
type AuthService struct {
	db        *database.Database
	redis     *redis.Client
	logger    *logger.Logger
	jwtSecret string
	jwtExpiry time.Duration
}

// New создает новый сервис аутентификации операторов.
func New(db *database.Database, redisClient *redis.Client, log *logger.Logger, jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{db: db, redis: redisClient, logger: log, jwtSecret: jwtSecret, jwtExpiry: jwtExpiry}
}

// Register creates a new operator account.
func (s *AuthService) Register(req *RegisterRequest) (*User, error) {
	ctx := context.Background()

	var count int
	err := s.db.GetConnection().QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = $1", req.Username).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("username already exists")
	}

	hashedPassword, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = RoleOp
	}

	var user User
	err = s.db.GetConnection().QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id, created_at, updated_at`,
		req.Username, hashedPassword, role, time.Now(),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	user.Username = req.Username
	user.PasswordHash = hashedPassword
	user.Role = role

	s.logger.Info("operator registered", "user_id", user.ID, "username", user.Username)
	return &user, nil
}

// Login authenticates req and returns the user and a signed JWT.
func (s *AuthService) Login(req *LoginRequest) (*User, string, error) {
	ctx := context.Background()

	var user User
	err := s.db.GetConnection().QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, created_at, updated_at, last_login
		FROM users WHERE username = $1`, req.Username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt, &user.LastLogin)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", fmt.Errorf("invalid credentials")
		}
		return nil, "", fmt.Errorf("find user: %w", err)
	}

	if !s.CheckPassword(req.Password, user.PasswordHash) {
		return nil, "", fmt.Errorf("invalid credentials")
	}

	token, err := s.GenerateToken(&user)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	now := time.Now()
	if _, err := s.db.Exec("UPDATE users SET last_login = $1, updated_at = $1 WHERE id = $2", now, user.ID); err != nil {
		s.logger.Warn("failed to update last login", "error", err)
	}

	if err := s.redis.SetSession(fmt.Sprintf("%d", user.ID), token, s.jwtExpiry); err != nil {
		s.logger.Warn("failed to save session to redis", "error", err)
	}

	s.logger.Info("operator logged in", "user_id", user.ID, "username", user.Username)
	return &user, token, nil
}

// Logout invalidates token's session.
func (s *AuthService) Logout(token string) error {
	if err := s.redis.DeleteSession(token); err != nil {
		s.logger.Warn("failed to delete session from redis", "error", err)
	}
	return nil
}

// ValidateToken parses and verifies a JWT, returning the associated user.
func (s *AuthService) ValidateToken(token string) (*User, error) {
	ctx := context.Background()

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	userIDStr, ok := claims["user_id"].(string)
	if !ok || userIDStr == "" {
		return nil, fmt.Errorf("invalid token: missing user_id")
	}

	var user User
	err = s.db.GetConnection().QueryRowContext(ctx, `
		SELECT id, username, role, created_at, updated_at, last_login
		FROM users WHERE id = $1`, userIDStr,
	).Scan(&user.ID, &user.Username, &user.Role, &user.CreatedAt, &user.UpdatedAt, &user.LastLogin)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if _, err := s.redis.GetSession(token); err != nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	return &user, nil
}

// GenerateToken signs a JWT for user.
func (s *AuthService) GenerateToken(user *User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  fmt.Sprintf("%d", user.ID),
		"username": user.Username,
		"role":     string(user.Role),
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(s.jwtExpiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// HashPassword hashes a plaintext password with bcrypt.
func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GetUserByID looks up an operator by id.
func (s *AuthService) GetUserByID(userID string) (*User, error) {
	var user User
	err := s.db.GetConnection().QueryRowContext(context.Background(), `
		SELECT id, username, role, created_at, updated_at, last_login
		FROM users WHERE id = $1`, userID,
	).Scan(&user.ID, &user.Username, &user.Role, &user.CreatedAt, &user.UpdatedAt, &user.LastLogin)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// ChangePassword verifies currentPassword and replaces it with newPassword.
func (s *AuthService) ChangePassword(userID, currentPassword, newPassword string) error {
	var currentHash string
	err := s.db.GetConnection().QueryRowContext(context.Background(), "SELECT password_hash FROM users WHERE id = $1", userID).Scan(&currentHash)
	if err != nil {
		return fmt.Errorf("get current password: %w", err)
	}

	if !s.CheckPassword(currentPassword, currentHash) {
		return fmt.Errorf("current password is incorrect")
	}

	newHash, err := s.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	_, err = s.db.GetConnection().ExecContext(context.Background(), "UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3",
		newHash, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.Info("operator password changed", "user_id", userID)
	return nil
}
