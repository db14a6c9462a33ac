package server

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"jupiter/internal/engine"
)

// APIKeyHeader carries an API key instead of a bearer token.
const APIKeyHeader = "X-Api-Key"

type authKey struct{}

// authResult is what the middleware found out about the caller.
type authResult struct {
	id  engine.Identity
	err huma.StatusError
}

func identityFrom(ctx context.Context) (engine.Identity, huma.StatusError) {
	res, ok := ctx.Value(authKey{}).(authResult)
	switch {
	case !ok:
		return engine.Identity{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	case res.err != nil:
		return engine.Identity{}, res.err
	}
	return res.id, nil
}

// publicRoutes answer without credentials.
var publicRoutes = map[string]bool{
	path.Join(BasePath, "init"):         true,
	path.Join(BasePath, "login"):        true,
	path.Join(BasePath, "openapi.json"): true,
}

func isPublic(route string) bool { return publicRoutes[route] }

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware resolves the caller from a bearer token or an API key. Rejections are answered
// by the use case handler so that they show up in the metrics.
func newAuthMiddleware(e engine.Engine, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, BasePath+"/") || isPublic(req.URL.Path) {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			key := strings.TrimSpace(req.Header.Get(APIKeyHeader))

			var res authResult
			switch {
			case authz != "":
				token, ok := bearerToken(authz)
				if !ok {
					res.err = newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
					break
				}
				id, err := e.Authenticate(req.Context(), token)
				res = authResult{id: id, err: handleError(err)}
			case key != "":
				id, err := e.AuthenticateAPIKey(req.Context(), key)
				res = authResult{id: id, err: handleError(err)}
			default:
				res.err = newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
			}
			if res.err != nil {
				log.WithField("path", req.URL.Path).Debug("rejected credentials")
			}
			next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), authKey{}, res)))
		})
	}
}

// requestLogger logs one line per request at Info, with the chi request id.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
			}).Info("request")
		})
	}
}
