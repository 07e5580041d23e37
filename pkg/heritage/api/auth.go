package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/swadeshi/heritage/pkg/heritage"
)

type identityKey struct{}

// NewJWTAuth returns the HS256 verifier shared by the server and the admin token command.
func NewJWTAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// IssueToken signs a token for identity.
func IssueToken(ja *jwtauth.JWTAuth, identity heritage.Identity, extra map[string]interface{}) (string, error) {
	claims := map[string]interface{}{
		"sub":  identity.UserID.String(),
		"role": string(identity.Role),
	}
	for k, v := range extra {
		claims[k] = v
	}
	_, token, err := ja.Encode(claims)
	return token, err
}

// Authenticate verifies a bearer token when one is presented and stores the
// caller's identity in the request context. Requests without a token pass
// through anonymously; a bad token is rejected.
func Authenticate(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	verify := jwtauth.Verifier(ja)
	return func(next http.Handler) http.Handler {
		identify := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if errors.Is(err, jwtauth.ErrNoTokenFound) {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				writeStatus(w, r, http.StatusUnauthorized, ErrorBody{Code: CodeUnauthorized, Message: err.Error()})
				return
			}

			identity, err := identityFromClaims(claims)
			if err != nil {
				writeStatus(w, r, http.StatusUnauthorized, ErrorBody{Code: CodeUnauthorized, Message: err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
		})
		return verify(identify)
	}
}

func identityFromClaims(claims map[string]interface{}) (heritage.Identity, error) {
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil || userID == uuid.Nil {
		return heritage.Identity{}, errors.New("token subject is not a user id")
	}
	role := heritage.RoleUser
	if r, _ := claims["role"].(string); heritage.Role(r) == heritage.RoleAdmin {
		role = heritage.RoleAdmin
	}
	return heritage.Identity{UserID: userID, Role: role}, nil
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (heritage.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(heritage.Identity)
	return identity, ok
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			writeStatus(w, r, http.StatusUnauthorized, ErrorBody{Code: CodeUnauthorized, Message: "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous requests with 401 and non-admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())
		if !identity.IsAdmin() {
			writeStatus(w, r, http.StatusForbidden, ErrorBody{Code: CodeForbidden, Message: "admin role required"})
			return
		}
		next.ServeHTTP(w, r)
	}))
}
