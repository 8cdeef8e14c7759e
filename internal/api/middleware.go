package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-Id"

// RequestID stamps every request with a UUID, reusing one supplied by the
// caller (useful for peer-to-peer replica RPCs that want end-to-end
// tracing across a fan-out).
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// Logger is a Gin middleware that logs every request with method, path,
// status code, latency, and request id via logrus.
func Logger(nodeID string) gin.HandlerFunc {
	log := logrus.WithField("node_id", nodeID)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start),
			"client_ip":  c.ClientIP(),
			"request_id": c.GetString("request_id"),
		}).Info("request handled")
	}
}

// Recovery replaces Gin's default recovery: it logs panics in a structured
// way and answers 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logrus.WithField("request_id", c.GetString("request_id")).
					WithField("panic", err).
					Error("recovered from panic")
				c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
