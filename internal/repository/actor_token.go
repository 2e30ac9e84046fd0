package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"soro-core/internal/domain"
)

type ActorTokenRepository struct {
	db *sql.DB
}

func NewActorTokenRepository(db *sql.DB) *ActorTokenRepository {
	return &ActorTokenRepository{db: db}
}

// FindByPlainToken resolves an API token of the form "<id>|<secret>" (or the
// bare secret) to the actor it belongs to. Only the sha256 of the secret is
// stored.
func (r *ActorTokenRepository) FindByPlainToken(ctx context.Context, plainToken string) (*domain.ActorToken, error) {
	plainToken = strings.TrimSpace(plainToken)
	if plainToken == "" {
		return nil, errors.New("empty token")
	}

	var (
		tokenID   *int64
		tokenPart = plainToken
	)
	if idx := strings.Index(plainToken, "|"); idx > 0 {
		if id, err := strconv.ParseInt(plainToken[:idx], 10, 64); err == nil {
			tokenID = &id
			tokenPart = plainToken[idx+1:]
		}
	}

	sum := sha256.Sum256([]byte(tokenPart))
	hashStr := fmt.Sprintf("%x", sum)

	var (
		at    domain.ActorToken
		sfdID sql.NullString
		exp   sql.NullTime
	)

	scanToken := func(row *sql.Row) error {
		err := row.Scan(&at.ID, &at.TokenHash, &at.ActorID, &sfdID, &at.Abilities, &exp)
		if err != nil {
			return err
		}
		if sfdID.Valid {
			at.SFDID = &sfdID.String
		}
		if exp.Valid {
			at.ExpiresAt = &exp.Time
		}
		return nil
	}

	if tokenID != nil {
		row := r.db.QueryRowContext(ctx, `
			SELECT id, token, actor_id, sfd_id, abilities, expires_at
			FROM actor_tokens
			WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)
		`, *tokenID, time.Now())
		if err := scanToken(row); err == nil && at.TokenHash == hashStr {
			return &at, nil
		}
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, token, actor_id, sfd_id, abilities, expires_at
		FROM actor_tokens
		WHERE token = $1 AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at DESC
		LIMIT 1
	`, hashStr, time.Now())
	if err := scanToken(row); err != nil {
		return nil, errors.New("token not found")
	}

	return &at, nil
}
