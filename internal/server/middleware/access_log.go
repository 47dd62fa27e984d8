package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/looplj/todohub/internal/contexts"
	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/tracing"
)

// AccessLog logs failed requests: client errors at warn, server errors and requests carrying errors at error.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()

		errs := append(c.Errors.Errors(), lo.Map(contexts.GetErrors(ctx), func(err error, _ int) string {
			return err.Error()
		})...)
		if status < 400 && len(errs) == 0 {
			return
		}

		fields := []log.Field{
			log.Int("status", status),
			log.String("method", c.Request.Method),
			log.String("path", c.Request.URL.Path),
			log.String("route", c.FullPath()),
			log.Duration("latency", time.Since(start)),
			log.String("client_ip", c.ClientIP()),
		}

		if opName, ok := tracing.GetOperationName(ctx); ok {
			fields = append(fields, log.String("operation", opName))
		}

		if session, ok := contexts.GetSession(ctx); ok {
			fields = append(fields, log.String("user_id", session.User.ID))
		}

		if len(errs) > 0 {
			fields = append(fields, log.Strings("errors", errs))
		}

		if status < 500 {
			log.Warn(ctx, "[ACCESS]", fields...)
			return
		}

		log.Error(ctx, "[ACCESS]", fields...)
	}
}
