package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var jwtSecret []byte
var refreshSecret []byte
var accessTokenMinutes = 15
var refreshTokenDays = 7
var CookieSecure = true

func init() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		// Ephemeral secret: fine for dev and tests, sessions won't survive a
		// restart. Production deployments must set JWT_SECRET.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			log.Fatal("FATAL: failed to generate ephemeral JWT secret:", err)
		}
		secret = hex.EncodeToString(buf)
		log.Println("WARNING: JWT_SECRET not set, using an ephemeral secret")
	}
	jwtSecret = []byte(secret)

	// Refresh tokens use a separate secret
	refreshSecretEnv := os.Getenv("JWT_REFRESH_SECRET")
	if refreshSecretEnv == "" {
		refreshSecretEnv = secret + "-refresh"
	}
	refreshSecret = []byte(refreshSecretEnv)

	// Cookie security can be disabled for local HTTP dev
	if os.Getenv("COOKIE_SECURE") == "false" {
		CookieSecure = false
	}

	// Optional expiry overrides
	if v := os.Getenv("ACCESS_TOKEN_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			accessTokenMinutes = n
		}
	}
	if v := os.Getenv("REFRESH_TOKEN_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			refreshTokenDays = n
		}
	}
}

type Claims struct {
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type,omitempty"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// GenerateToken creates a short-lived access token.
func GenerateToken(userID int, username string) (string, error) {
	claims := Claims{
		UserID:    userID,
		Username:  username,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(accessTokenMinutes) * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// GenerateRefreshToken creates a long-lived refresh token.
func GenerateRefreshToken(userID int, username string) (string, error) {
	claims := Claims{
		UserID:    userID,
		Username:  username,
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(refreshTokenDays) * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(refreshSecret)
}

func parseClaims(tokenString string, secret []byte, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.TokenType != wantType {
			return nil, errors.New("invalid token type")
		}
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

func ValidateToken(tokenString string) (*Claims, error) {
	return parseClaims(tokenString, jwtSecret, "access")
}

func ValidateRefreshToken(tokenString string) (*Claims, error) {
	return parseClaims(tokenString, refreshSecret, "refresh")
}

// RefreshTTL returns the configured refresh token lifetime.
func RefreshTTL() time.Duration {
	return time.Duration(refreshTokenDays) * 24 * time.Hour
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func CheckPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
