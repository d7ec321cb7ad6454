package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
)

const sessionContextKey = "session"

// SessionResolver maps a bearer token to a user id. Tokens are written by
// the hosted auth system; this service only reads them.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (string, error)
}

// requireSession resolves the Authorization bearer token into an explicit
// session object and aborts with 401 when no authenticated user is present
func requireSession(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		userID, err := sessions.ResolveSession(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to resolve session",
			})
			return
		}
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		c.Set(sessionContextKey, models.Session{Token: token, UserID: userID})
		c.Next()
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func sessionFromContext(c *gin.Context) models.Session {
	if v, ok := c.Get(sessionContextKey); ok {
		if session, ok := v.(models.Session); ok {
			return session
		}
	}
	return models.Session{}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
