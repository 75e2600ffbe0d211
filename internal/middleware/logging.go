package middleware

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Tracef(
				" ====> request [%s] path: [%s] [UA: %s] [from: %s]",
				r.Method, r.URL.Path, r.Header.Get("User-Agent"), r.RemoteAddr,
			)
			next.ServeHTTP(w, r)
		})
	}
}
