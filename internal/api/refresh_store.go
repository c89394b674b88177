package api

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"
)

// Refresh tokens are stored hashed so a database leak doesn't hand out live
// sessions.

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func StoreRefreshToken(db *sql.DB, userID int, token string, expiresAt time.Time) error {
	_, err := db.Exec(
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)",
		userID, hashToken(token), expiresAt.UTC(),
	)
	return err
}

// ValidateRefreshTokenInDB checks the token exists, is not revoked and has
// not expired, returning the owning user id.
func ValidateRefreshTokenInDB(db *sql.DB, token string) (int, error) {
	var userID int
	var expiresAt time.Time
	var revoked bool

	err := db.QueryRow(
		"SELECT user_id, expires_at, revoked FROM refresh_tokens WHERE token_hash = ?",
		hashToken(token),
	).Scan(&userID, &expiresAt, &revoked)

	if err == sql.ErrNoRows {
		return 0, errors.New("refresh token not found")
	}
	if err != nil {
		return 0, err
	}
	if revoked {
		return 0, errors.New("refresh token revoked")
	}
	if time.Now().After(expiresAt) {
		return 0, errors.New("refresh token expired")
	}

	return userID, nil
}

func RevokeRefreshToken(db *sql.DB, token string) error {
	_, err := db.Exec(
		"UPDATE refresh_tokens SET revoked = 1 WHERE token_hash = ?",
		hashToken(token),
	)
	return err
}

// PruneExpiredRefreshTokens removes tokens past their expiry; called from
// the serve loop housekeeping ticker.
func PruneExpiredRefreshTokens(db *sql.DB) error {
	_, err := db.Exec("DELETE FROM refresh_tokens WHERE expires_at <= ?", time.Now().UTC())
	return err
}
