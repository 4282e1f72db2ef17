package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/leanmaker/leanmaker-backend/internal/domain"
)

const actorKey = contextKey("actor")

// identityClaims is the token payload the platform's auth service signs.
type identityClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// authenticate resolves the bearer token into a domain.Actor and stores it
// in the request context. Invalid or missing tokens end the request with
// 401; role checks are the services' job.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := extractBearerToken(r)
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims := &identityClaims{}
		_, err = jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}

			return []byte(s.jwtSecret), nil
		})
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if claims.Subject == "" {
			s.respondError(w, http.StatusUnauthorized, "token has no subject")
			return
		}

		actor := domain.Actor{
			UserID: claims.Subject,
			Role:   domain.Role(claims.Role),
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("authorization header is not a bearer token")
	}

	return parts[1], nil
}

func getActor(ctx context.Context) domain.Actor {
	if actor, ok := ctx.Value(actorKey).(domain.Actor); ok {
		return actor
	}

	return domain.Actor{}
}
