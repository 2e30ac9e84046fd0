package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"soro-core/internal/domain"
	"soro-core/internal/repository"
)

type ctxKey string

const ActorIDKey ctxKey = "actorID"

// ActorMiddleware resolves the bearer token to an actor and stores the
// actor ID on the request context. The token is also accepted as a
// "token" query parameter for websocket connections, where browsers
// cannot set an Authorization header.
func ActorMiddleware(tokenRepo *repository.ActorTokenRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token *domain.ActorToken

			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				plain := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
				if plain != "" {
					if t, err := tokenRepo.FindByPlainToken(r.Context(), plain); err == nil {
						token = t
					}
				}
			}

			if token == nil {
				if plain := r.URL.Query().Get("token"); plain != "" {
					if t, err := tokenRepo.FindByPlainToken(r.Context(), plain); err == nil {
						token = t
					}
				}
			}

			if token == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if token.ExpiresAt != nil && token.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ActorIDKey, token.ActorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetActorID(ctx context.Context) (int64, error) {
	actorID, ok := ctx.Value(ActorIDKey).(int64)
	if !ok {
		return 0, errors.New("actorID not found in context")
	}
	return actorID, nil
}
