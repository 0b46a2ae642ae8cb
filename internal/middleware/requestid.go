package middleware

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the request id
const RequestIDKey = "request_id"

// RequestIDHeader is the response header carrying the request id
const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with a time-sortable snowflake id so log
// lines from the same request can be correlated.
type RequestID struct {
	node *snowflake.Node
}

// NewRequestID creates a request-id middleware. Datacenter and worker IDs
// each use 5 bits (0-31) of the snowflake node id.
func NewRequestID(datacenterID, workerID int64) (*RequestID, error) {
	node, err := snowflake.NewNode((datacenterID << 5) | workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snowflake node: %w", err)
	}
	return &RequestID{node: node}, nil
}

// Middleware returns the gin middleware function
func (r *RequestID) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := r.node.Generate().String()
		c.Set(RequestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}
