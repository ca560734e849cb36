package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas base.
func NewRouter(logger *zap.Logger, accountH *AccountHandler, jwtMiddleware gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	auth := r.Group("/auth")
	auth.POST("/register", accountH.Register)
	auth.POST("/verify-email", accountH.VerifyEmail)
	auth.POST("/resend-verification", accountH.ResendVerification)
	auth.POST("/login", accountH.Login)
	auth.POST("/forgot-password", accountH.ForgotPassword)
	auth.POST("/reset-password", accountH.ResetPassword)
	auth.POST("/refresh", accountH.RefreshToken)
	auth.POST("/logout", accountH.Logout)

	protected := auth.Group("")
	protected.Use(jwtMiddleware)
	protected.GET("/profile", accountH.Profile)
	protected.DELETE("/account", accountH.DeleteAccount)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
