package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health answers liveness probes; it fails while the database is unreachable
func Health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			logrus.Warnf("health check failed: %v", err)
			c.PureJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.PureJSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
