// internal/adapters/in/http/middleware/auth.go
package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
)

// FirebaseAuthClient は firebase auth クライアントのエイリアス。
type FirebaseAuthClient = fbauth.Client

// TokenVerifier は ID トークン検証だけを切り出したもの（*FirebaseAuthClient が満たす）。
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// OperatorClaim は運用者に付与する Firebase custom claim 名。
const OperatorClaim = "operator"

// context key は独自型を使用（SA1029 対策）
type ctxKey struct{ name string }

var ctxKeyOperatorUID = ctxKey{name: "operatorUid"}

// OperatorAuth は
//
//   - Authorization: Bearer <ID_TOKEN>
//
// を検証し、運用者（custom claim operator=true か UID 許可リスト）だけを通します。
// Verifier が無い場合は全リクエストを拒否します。
type OperatorAuth struct {
	Verifier     TokenVerifier
	OperatorUIDs map[string]struct{}
}

// NewOperatorAuth builds the middleware from a verifier and an optional UID allow list.
func NewOperatorAuth(v TokenVerifier, uids []string) *OperatorAuth {
	m := &OperatorAuth{Verifier: v, OperatorUIDs: map[string]struct{}{}}
	for _, u := range uids {
		if u = strings.TrimSpace(u); u != "" {
			m.OperatorUIDs[u] = struct{}{}
		}
	}
	return m
}

func (m *OperatorAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.Verifier == nil {
			http.Error(w, "operator auth not configured", http.StatusServiceUnavailable)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "unauthorized: missing bearer token", http.StatusUnauthorized)
			return
		}
		idToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if idToken == "" {
			http.Error(w, "unauthorized: empty bearer token", http.StatusUnauthorized)
			return
		}

		token, err := m.Verifier.VerifyIDToken(r.Context(), idToken)
		if err != nil {
			log.Printf("[OperatorAuth] path=%s invalid token err=%v", r.URL.Path, err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		uid := strings.TrimSpace(token.UID)
		if uid == "" {
			http.Error(w, "invalid uid in token", http.StatusUnauthorized)
			return
		}

		if !m.isOperator(uid, token.Claims) {
			log.Printf("[OperatorAuth] path=%s uid=%s is not an operator", r.URL.Path, uid)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		log.Printf("[OperatorAuth] path=%s uid=%s", r.URL.Path, uid)
		ctx := context.WithValue(r.Context(), ctxKeyOperatorUID, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *OperatorAuth) isOperator(uid string, claims map[string]interface{}) bool {
	if _, ok := m.OperatorUIDs[uid]; ok {
		return true
	}
	v, ok := claims[OperatorClaim].(bool)
	return ok && v
}

// CurrentOperatorUID は middleware で検証された運用者の UID を返します。
func CurrentOperatorUID(r *http.Request) (string, bool) {
	s, ok := r.Context().Value(ctxKeyOperatorUID).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
