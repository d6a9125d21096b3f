package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const LoggerKey contextKey = "logger"

// RequireClaims rejects requests whose verified token lacks any of the given
// claims. It must run after jwtauth.Verifier.
func RequireClaims(ja *jwtauth.JWTAuth, requiredClaims ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				unauthorized(w, r, err.Error())
				return
			}

			if token == nil || jwt.Validate(token, ja.ValidateOptions()...) != nil {
				unauthorized(w, r, http.StatusText(http.StatusUnauthorized))
				return
			}

			for _, claim := range requiredClaims {
				if _, ok := claims[claim]; !ok {
					err := fmt.Errorf("missing required claim %s", claim)
					Logger(r).Warn().Err(err).Msg("Rejected token")
					unauthorized(w, r, "missing required claim")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]string{"error": msg})
}

// RequestLogger is a chi middleware that adds a sublogger to the context and
// logs one line per request once it is served.
func RequestLogger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sublogger := logger.With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("request_uri", r.RequestURI).
				Str("remote_addr", r.RemoteAddr).
				Str("method", r.Method).
				Logger()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			r = r.WithContext(context.WithValue(r.Context(), LoggerKey, &sublogger))

			defer func() {
				event := sublogger.Info()
				if ww.Status() >= http.StatusInternalServerError {
					event = sublogger.Warn()
				}
				event.
					Int("status_code", ww.Status()).
					Int64("bytes_in", r.ContentLength).
					Int("bytes_out", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("Request")
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

// Logger returns the request's sublogger, or the global logger outside of
// RequestLogger.
func Logger(r *http.Request) *zerolog.Logger {
	if l, ok := r.Context().Value(LoggerKey).(*zerolog.Logger); ok {
		return l
	}
	return &log.Logger
}
