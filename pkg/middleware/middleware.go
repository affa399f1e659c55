package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

const (
	AuthorizationHeader = "Authorization"
	bearer              = "Bearer "

	staffKey = "staffID"
)

// TokenAuth accepts opaque bearer tokens issued elsewhere; tokens maps token -> staff id.
func TokenAuth(tokens map[string]string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authorization := c.Request().Header.Get(AuthorizationHeader)
			if authorization == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "No Authorization Header")
			}
			if !strings.HasPrefix(authorization, bearer) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization Header")
			}
			token := strings.TrimPrefix(authorization, bearer)

			staffID, ok := lookupToken(tokens, token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid Token")
			}
			c.Set(staffKey, staffID)
			return next(c)
		}
	}
}

func lookupToken(tokens map[string]string, token string) (string, bool) {
	for known, staffID := range tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return staffID, true
		}
	}
	return "", false
}

type Get interface {
	Get(string) any
}

// StaffID returns the authenticated staff member, or "" on public routes.
func StaffID(getter Get) string {
	id, _ := getter.Get(staffKey).(string)
	return id
}

func NewRateLimiter(rps rate.Limit) echo.MiddlewareFunc {
	return middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rps))
}

func RequestLoggerConfig(log *zap.Logger) middleware.RequestLoggerConfig {
	log = log.Named("echo")
	c := middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		HandleError:  true,
		LogError:     true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := zapcore.InfoLevel
			if v.Error != nil {
				level = zapcore.ErrorLevel
			}
			log.Log(level, "request",
				zap.String("URI", v.URI),
				zap.String("Method", v.Method),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}
	return c
}
