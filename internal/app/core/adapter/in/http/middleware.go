package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/identity"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
)

const (
	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

// Observer 記錄 HTTP 請求 (pkg/metrics 實作)
type Observer interface {
	ObserveHTTP(method, route, status string, elapsed time.Duration)
}

// Authenticator 驗證 access token
type Authenticator interface {
	Authenticate(token string) (*identity.Claims, error)
}

// requestContext 配發 request id，記錄 access log 與 metrics
func requestContext(log *slog.Logger, observer Observer) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		if observer != nil {
			observer.ObserveHTTP(c.Request.Method, route, strconv.Itoa(status), elapsed)
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method, "route", route, "status", status, "elapsed", elapsed)
	}
}

// requireAuth 驗證 Bearer token 並把帳號放進 request context
func requireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			fail(c, http.StatusUnauthorized, "Access token missing or malformed")
			return
		}
		claims, err := auth.Authenticate(strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, identity.ErrTokenExpired) {
				fail(c, http.StatusUnauthorized, "Access token expired")
				return
			}
			fail(c, http.StatusUnauthorized, "Invalid access token")
			return
		}
		c.Request = c.Request.WithContext(identity.WithAccountNumber(c.Request.Context(), claims.AccountNumber))
		c.Next()
	}
}

// accountNumber 取出 requireAuth 放入的帳號
func accountNumber(c *gin.Context) string {
	number, _ := identity.AccountNumberFrom(c.Request.Context())
	return number
}
