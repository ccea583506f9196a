package middleware

import "net/http"

// baseSecurityHeaders は全レスポンスに付与するヘッダー。
var baseSecurityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	// セッションに依存するレスポンスを共有キャッシュに残さない
	{"Cache-Control", "no-store"},
}

const hstsValue = "max-age=63072000; includeSubDomains"

// NewSecurityHeadersMiddleware はセキュリティ関連のレスポンスヘッダーを付与するミドルウェアを返す。
// strictTransportがtrue（BASE_URLがhttps）の場合はHSTSも付与する。
func NewSecurityHeadersMiddleware(strictTransport bool) func(next http.Handler) http.Handler {
	headers := baseSecurityHeaders
	if strictTransport {
		headers = append(headers[:len(headers):len(headers)], [2]string{"Strict-Transport-Security", hstsValue})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range headers {
				h.Set(kv[0], kv[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}
