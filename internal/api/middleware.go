package api

import (
	"net/http"
	"strings"
	"time"

	"dealflow/server/internal/apperr"
	"dealflow/server/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const callerKey = "caller"

// RequestLogger writes one structured entry per request.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := requestFields(c)
		fields["status"] = c.Writer.Status()
		fields["latency_ms"] = time.Since(start).Milliseconds()
		fields["client_ip"] = c.ClientIP()

		entry := logger.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request completed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}

func requestFields(c *gin.Context) logrus.Fields {
	fields := logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}
	if fields["path"] == "" {
		fields["path"] = c.Request.URL.Path
	}
	if caller, ok := c.Get(callerKey); ok {
		fields["user_id"] = caller.(auth.Caller).ID
	}
	return fields
}

// Authenticate requires a valid bearer token and stores the caller in the context.
func (h *Handler) Authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		abortWith(c, http.StatusUnauthorized, apperr.CodeTokenMissing, "Authentication required")
		return
	}

	caller, err := h.tokens.Verify(strings.TrimSpace(token))
	if err != nil {
		h.logger.WithError(err).Debug("Rejected bearer token")
		abortWith(c, http.StatusUnauthorized, apperr.CodeTokenInvalid, "Invalid or expired token")
		return
	}

	c.Set(callerKey, caller)
	c.Next()
}

// RequireAgent allows AGENT and ADMIN callers.
func (h *Handler) RequireAgent(c *gin.Context) {
	if !callerFrom(c).IsAgent() {
		abortWith(c, http.StatusForbidden, apperr.CodeInsufficientRole, "Agent access required")
		return
	}
	c.Next()
}

func callerFrom(c *gin.Context) auth.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(auth.Caller); ok {
			return caller
		}
	}
	return auth.Caller{}
}
