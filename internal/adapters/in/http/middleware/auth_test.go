package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
)

// fakeVerifier は ID トークン文字列ごとに Token を返す。
type fakeVerifier map[string]*fbauth.Token

func (f fakeVerifier) VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error) {
	if tok, ok := f[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("token expired")
}

func TestOperatorAuth(t *testing.T) {
	verifier := fakeVerifier{
		"claim-token":  {UID: "ops-1", Claims: map[string]interface{}{OperatorClaim: true}},
		"listed-token": {UID: "ops-2", Claims: map[string]interface{}{}},
		"user-token":   {UID: "user-9", Claims: map[string]interface{}{OperatorClaim: "yes"}},
		"no-uid-token": {UID: " ", Claims: map[string]interface{}{OperatorClaim: true}},
	}
	auth := NewOperatorAuth(verifier, []string{" ops-2 ", ""})

	var seenUID string
	h := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUID, _ = CurrentOperatorUID(r)
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		header string
		code   int
		uid    string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"notBearer", "Basic abc", http.StatusUnauthorized, ""},
		{"emptyBearer", "Bearer   ", http.StatusUnauthorized, ""},
		{"invalid", "Bearer forged", http.StatusUnauthorized, ""},
		{"noUID", "Bearer no-uid-token", http.StatusUnauthorized, ""},
		{"notOperator", "Bearer user-token", http.StatusForbidden, ""},
		{"operatorClaim", "Bearer claim-token", http.StatusOK, "ops-1"},
		{"allowListed", "Bearer listed-token", http.StatusOK, "ops-2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seenUID = ""
			req := httptest.NewRequest(http.MethodGet, "/issuances/remediation", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.uid, seenUID)
		})
	}
}

func TestOperatorAuth_NotConfiguredRejectsEverything(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	for _, auth := range []*OperatorAuth{nil, NewOperatorAuth(nil, []string{"ops-1"})} {
		req := httptest.NewRequest(http.MethodGet, "/issuances/x", nil)
		req.Header.Set("Authorization", "Bearer anything")
		rec := httptest.NewRecorder()
		auth.Handler(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	}
	assert.False(t, called)
}
