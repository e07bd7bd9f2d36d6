package auth

import (
	"context"
	"errors"
	"net/http"

	"cinema-reservation/internal/observability"
)

type contextKey struct{}

var identityContextKey contextKey

// IdentityFromContext returns the identity attached by SessionResolver, if
// the request resolved to one.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}

// SessionResolver decodes the access cookie and attaches the resolved
// identity to the request context. It never fails a request: anything short
// of a valid, unrevoked token for a known identity resolves to anonymous,
// and authorization is enforced downstream.
type SessionResolver struct {
	codec      *Codec
	ledger     RevocationLedger
	identities IdentityStore
	cookieName string
	logger     *observability.Logger
}

func NewSessionResolver(
	codec *Codec,
	ledger RevocationLedger,
	identities IdentityStore,
	cookieName string,
	logger *observability.Logger,
) *SessionResolver {
	return &SessionResolver{
		codec:      codec,
		ledger:     ledger,
		identities: identities,
		cookieName: cookieName,
		logger:     logger,
	}
}

func (s *SessionResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.cookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := s.codec.Verify(cookie.Value)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		revoked, err := s.ledger.IsRevoked(r.Context(), claims.TokenID)
		if err != nil {
			// Store trouble degrades this request to anonymous rather
			// than taking the whole pipeline down.
			s.logger.Error("session_revocation_check_failed", map[string]any{
				"identity_id": claims.Subject,
				"jti":         claims.TokenID,
				"error":       err.Error(),
			})
			next.ServeHTTP(w, r)
			return
		}
		if revoked {
			s.logger.Warn("session_token_revoked", map[string]any{
				"identity_id": claims.Subject,
				"jti":         claims.TokenID,
				"reason":      "revoked_jti",
			})
			next.ServeHTTP(w, r)
			return
		}

		identity, err := s.identities.IdentityByID(r.Context(), claims.Subject)
		if err != nil {
			if !errors.Is(err, ErrIdentityNotFound) {
				s.logger.Error("session_identity_lookup_failed", map[string]any{
					"identity_id": claims.Subject,
					"error":       err.Error(),
				})
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireIdentity rejects requests that resolved to anonymous.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous requests and non-admin identities.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if identity.Role != RoleAdmin {
			writeError(w, http.StatusForbidden, "admins only")
			return
		}
		next.ServeHTTP(w, r)
	})
}
