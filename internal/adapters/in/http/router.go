// internal/adapters/in/http/router.go
package httpin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tokenissuer/internal/adapters/in/http/handler"
	"tokenissuer/internal/adapters/in/http/middleware"
)

// RouterDeps collects the handlers injected from the DI container.
type RouterDeps struct {
	Issuance *handler.IssuanceHandler

	// 運用者向け参照 API の認証。nil なら参照 API は 503 を返す
	OperatorAuth *middleware.OperatorAuth

	// 空なら CORS ヘッダを付けない
	AllowedOrigins []string
}

// NewRouter sets up HTTP routing.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS は Recover の外側（panic 時も CORS ヘッダが付く）
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         600,
		}))
	}
	r.Use(middleware.Recover)

	// Health check (always on)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	if deps.Issuance != nil {
		deps.Issuance.Routes(r, deps.OperatorAuth.Handler)
	}
	return r
}
