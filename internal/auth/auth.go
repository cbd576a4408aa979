package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"homehub/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token has expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrAccountLocked      = errors.New("account is locked due to too many failed attempts")
)

type Claims struct {
	Username string `json:"username"`
	UserID   uint   `json:"user_id"`
	jwt.RegisteredClaims
}

// Store is the slice of the database the auth manager needs.
type Store interface {
	GetAdminByUsername(username string) (*AdminAuth, error)
	UpdateAdminPassword(id uint, password string) error
}

type AdminAuth struct {
	ID       uint
	Username string
	Password string
}

type AuthManager struct {
	db            Store
	config        *config.Config
	mu            sync.Mutex
	loginAttempts map[string][]time.Time
}

func NewAuthManager(cfg *config.Config, db Store) *AuthManager {
	return &AuthManager{
		db:            db,
		config:        cfg,
		loginAttempts: make(map[string][]time.Time),
	}
}

func (am *AuthManager) ValidateCredentials(username, password string) error {
	if am.IsLocked(username) {
		return ErrAccountLocked
	}

	if am.db != nil {
		admin, err := am.db.GetAdminByUsername(username)
		if err == nil && admin != nil {
			if !am.CheckPassword(password, admin.Password) {
				am.recordFailure(username)
				return ErrInvalidCredentials
			}
			am.clearAttempts(username)
			return nil
		}
	}

	// Fallback for first boot before the admin row exists
	if username != am.config.Auth.AdminUsername {
		return ErrInvalidCredentials
	}

	if password != am.config.Auth.AdminPassword {
		am.recordFailure(username)
		return ErrInvalidCredentials
	}

	am.clearAttempts(username)
	return nil
}

func (am *AuthManager) recordFailure(username string) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.loginAttempts[username] = append(am.loginAttempts[username], time.Now())
}

func (am *AuthManager) clearAttempts(username string) {
	am.mu.Lock()
	defer am.mu.Unlock()
	delete(am.loginAttempts, username)
}

func (am *AuthManager) hashPassword(password string) string {
	hash := sha256.Sum256([]byte(password + "homehub-salt"))
	return hex.EncodeToString(hash[:])
}

// cleanOldAttempts drops attempts older than the lockout window.
// Callers must hold mu.
func (am *AuthManager) cleanOldAttempts(username string) []time.Time {
	cutoff := time.Now().Add(-am.config.Auth.LockoutDuration)
	var valid []time.Time
	for _, t := range am.loginAttempts[username] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	am.loginAttempts[username] = valid
	return valid
}

func (am *AuthManager) IsLocked(username string) bool {
	am.mu.Lock()
	defer am.mu.Unlock()
	return len(am.cleanOldAttempts(username)) >= am.config.Auth.MaxLoginAttempts
}

// PruneExpiredAttempts removes stale lockout entries so the attempts map
// doesn't grow unbounded. Called periodically from main.
func (am *AuthManager) PruneExpiredAttempts() {
	am.mu.Lock()
	defer am.mu.Unlock()
	for username := range am.loginAttempts {
		if len(am.cleanOldAttempts(username)) == 0 {
			delete(am.loginAttempts, username)
		}
	}
}

func (am *AuthManager) GenerateToken(username string, userID uint) (string, error) {
	claims := Claims{
		Username: username,
		UserID:   userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(am.config.Auth.TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "homehub",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(am.config.Server.JWTSecretKey))
}

func (am *AuthManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(am.config.Server.JWTSecretKey), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

func (am *AuthManager) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(
		[]byte(am.hashPassword(password)),
		am.config.Auth.BcryptCost,
	)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (am *AuthManager) CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(am.hashPassword(password)))
	return err == nil
}

func (am *AuthManager) UpdatePassword(username, newPassword string) error {
	if am.db == nil {
		return errors.New("database not configured")
	}

	admin, err := am.db.GetAdminByUsername(username)
	if err != nil {
		return err
	}
	if admin == nil {
		return errors.New("admin not found")
	}

	hashedPassword, err := am.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return am.db.UpdateAdminPassword(admin.ID, hashedPassword)
}

func GenerateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
