package api

import (
	"database/sql"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"memodate/internal/auth"
	"memodate/internal/database"
	"memodate/internal/models"
)

func setRefreshCookie(c *fiber.Ctx, token string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    token,
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   auth.CookieSecure,
		SameSite: "Lax",
		Path:     "/api/auth",
	})
}

func issueTokens(c *fiber.Ctx, db *sql.DB, user models.User) (string, error) {
	accessToken, err := auth.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to generate token")
	}

	refreshToken, err := auth.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to generate refresh token")
	}

	expiresAt := time.Now().Add(auth.RefreshTTL())
	if err := StoreRefreshToken(db, user.ID, refreshToken, expiresAt); err != nil {
		log.Printf("Failed to store refresh token: %v", err)
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to store refresh token")
	}
	setRefreshCookie(c, refreshToken, expiresAt)

	return accessToken, nil
}

func RegisterHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if req.Username == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Username and password are required")
		}

		hashedPassword, err := auth.HashPassword(req.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to hash password")
		}

		var email interface{}
		if req.Email != "" {
			email = req.Email
		}

		result, err := db.Exec(
			"INSERT INTO users (username, password_hash, email, timezone) VALUES (?, ?, ?, ?)",
			req.Username, hashedPassword, email, database.DefaultTimezone,
		)
		if err != nil {
			return fiber.NewError(fiber.StatusConflict, "Username already exists")
		}

		userID, _ := result.LastInsertId()
		user := models.User{
			ID:       int(userID),
			Username: req.Username,
			Email:    req.Email,
			Timezone: database.DefaultTimezone,
		}

		accessToken, err := issueTokens(c, db, user)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(models.AuthResponse{
			Token: accessToken,
			User:  user,
		})
	}
}

func LoginHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		var user models.User
		err := db.QueryRow(
			"SELECT id, username, password_hash, COALESCE(email, ''), timezone FROM users WHERE username = ?",
			req.Username,
		).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Email, &user.Timezone)

		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid username or password")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Database error")
		}

		if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid username or password")
		}

		accessToken, err := issueTokens(c, db, user)
		if err != nil {
			return err
		}

		return c.JSON(models.AuthResponse{
			Token: accessToken,
			User:  user,
		})
	}
}

// RefreshTokenHandler rotates the refresh token and issues a new access token.
func RefreshTokenHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		refreshToken := c.Cookies("refresh_token")
		if refreshToken == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Refresh token not found")
		}

		claims, err := auth.ValidateRefreshToken(refreshToken)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired refresh token")
		}

		dbUserID, err := ValidateRefreshTokenInDB(db, refreshToken)
		if err != nil {
			log.Printf("Refresh token DB validation failed: %v", err)
			return fiber.NewError(fiber.StatusUnauthorized, "Refresh token not valid")
		}
		if dbUserID != claims.UserID {
			return fiber.NewError(fiber.StatusUnauthorized, "Token user mismatch")
		}

		accessToken, err := issueTokens(c, db, models.User{ID: claims.UserID, Username: claims.Username})
		if err != nil {
			return err
		}

		if err := RevokeRefreshToken(db, refreshToken); err != nil {
			log.Printf("Failed to revoke rotated refresh token: %v", err)
		}

		return c.JSON(fiber.Map{
			"token": accessToken,
		})
	}
}

// LogoutHandler revokes the refresh token and clears its cookie.
func LogoutHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if old := c.Cookies("refresh_token"); old != "" {
			_ = RevokeRefreshToken(db, old) // best-effort
		}

		setRefreshCookie(c, "", time.Now().Add(-1*time.Hour))

		return c.JSON(fiber.Map{
			"message": "Logged out successfully",
		})
	}
}
