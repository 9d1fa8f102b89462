package middleware

import (
	"github.com/gin-gonic/gin"

	"retailpos/internal/core/apperror"
	appctx "retailpos/internal/core/context"
	"retailpos/internal/core/id"
)

const (
	HeaderOperatorID = "X-Operator-ID"
	HeaderLocationID = "X-Location-ID"
	HeaderCounterID  = "X-Counter-ID"
)

// Session reads the operator session headers set by the till and attaches the
// session to the request context.
//
// Missing headers are not rejected here: reads need no session, and every write
// validates the session it is given.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := appctx.Session{
			OperatorID: c.GetHeader(HeaderOperatorID),
			CounterID:  c.GetHeader(HeaderCounterID),
		}

		if raw := c.GetHeader(HeaderLocationID); raw != "" {
			locationID, err := id.Parse(raw)
			if err != nil {
				_ = c.Error(apperror.NewValidation("invalid location id").
					WithDetail("header", HeaderLocationID))
				c.Abort()
				return
			}
			sess.LocationID = locationID
		}

		ctx := appctx.WithSession(c.Request.Context(), sess)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
