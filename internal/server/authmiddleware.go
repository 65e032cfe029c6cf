package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/etale-systems/tracehub/internal/apikey"
	"github.com/etale-systems/tracehub/internal/domain"
	"github.com/etale-systems/tracehub/internal/identity"
	"github.com/etale-systems/tracehub/internal/metrics"
)

type tenantIDKey struct{}
type credentialKey struct{}

// TenantID retrieves the authenticated tenant from context. Empty when
// no auth middleware ran.
func TenantID(ctx context.Context) string {
	id, _ := ctx.Value(tenantIDKey{}).(string)
	return id
}

// Credential retrieves the API key that authenticated the request.
// Nil on session-authenticated requests.
func Credential(ctx context.Context) *domain.APIKey {
	k, _ := ctx.Value(credentialKey{}).(*domain.APIKey)
	return k
}

// bearerToken extracts a credential from the X-API-Key header or an
// Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// APIKeyAuth authenticates the machine-facing ingestion surface. The
// key's owning tenant and the credential itself are injected into the
// request context.
func APIKeyAuth(keys *apikey.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)

			k, err := keys.Authenticate(r.Context(), token)
			if err != nil {
				metrics.AuthFailures.WithLabelValues("apikey").Inc()
				unauthorized(w)
				return
			}

			AddLogField(r.Context(), "tenant_id", k.TenantID)

			ctx := context.WithValue(r.Context(), tenantIDKey{}, k.TenantID)
			ctx = context.WithValue(ctx, credentialKey{}, k)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionAuth authenticates the human-facing dashboard surface: a
// signed bearer token whose subject is the external principal ID. The
// principal is resolved (and lazily provisioned) to a tenant.
func SessionAuth(resolver *identity.Resolver, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				metrics.AuthFailures.WithLabelValues("session").Inc()
				unauthorized(w)
				return
			}

			sub, email, err := verifySessionToken(raw, secret)
			if err != nil {
				metrics.AuthFailures.WithLabelValues("session").Inc()
				unauthorized(w)
				return
			}

			tenant, err := resolver.Resolve(r.Context(), sub, email)
			if err != nil {
				// Resolver conflicts and storage failures are not
				// credential rejections; keep them out of the counter.
				if domain.KindOf(err) == domain.KindUnauthorized {
					metrics.AuthFailures.WithLabelValues("session").Inc()
				}
				WriteError(w, err)
				return
			}

			AddLogField(r.Context(), "tenant_id", tenant.ID)

			ctx := context.WithValue(r.Context(), tenantIDKey{}, tenant.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func verifySessionToken(raw, secret string) (sub, email string, err error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", fmt.Errorf("unexpected claims type")
	}

	sub, err = claims.GetSubject()
	if err != nil || sub == "" {
		return "", "", fmt.Errorf("missing subject")
	}
	email, _ = claims["email"].(string)

	return sub, email, nil
}

func unauthorized(w http.ResponseWriter) {
	WriteError(w, domain.ErrUnauthorized("Unauthorized"))
}
