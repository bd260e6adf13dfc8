package middleware

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/openlims/labflow/config"
)

// CreateCorsMiddleware allows any origin while the API runs without
// authorization; with authorization enabled only the configured origins pass.
func CreateCorsMiddleware(configuration *config.Configuration) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE"}
	corsConfig.AllowHeaders = []string{"Origin", "Accept", "Content-Type", "Content-Length", "Authorization", "Cache-Control"}

	if configuration.Authorization {
		corsConfig.AllowOrigins = strings.Split(configuration.PermittedOrigin, ",")
	} else {
		corsConfig.AllowAllOrigins = true
	}

	return cors.New(corsConfig)
}
