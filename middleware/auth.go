package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/openlims/labflow/authmanager"
)

const contextKeyUser = "User"

// developmentActor is stamped on mutations when authorization is switched off.
const developmentActor = "development"

// CheckAuth - Token Validator for api requests
func CheckAuth(authManager authmanager.AuthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		token := strings.Split(authHeader, "Bearer ")

		if len(token) < 2 || token[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, InvalidTokenResponse)
			return
		}

		jwks, err := authManager.GetJWKS()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrOpenIDConfiguration)
			return
		}

		userToken := UserToken{}
		_, err = jwt.ParseWithClaims(token[1], &userToken, jwks.Keyfunc)

		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, InvalidTokenResponse)
			return
		}

		if !userToken.VerifyExpiresAt(time.Now(), true) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, TokenExpiredResponse)
			return
		}

		c.Set(contextKeyUser, userToken)
		c.Next()
	}
}

// ActorFromContext resolves the acting user set by CheckAuth. Without an
// authenticated user the development actor is returned.
func ActorFromContext(c *gin.Context) string {
	userObj, ok := c.Get(contextKeyUser)
	if !ok {
		return developmentActor
	}
	user, ok := userObj.(UserToken)
	if !ok {
		return developmentActor
	}
	return user.Actor()
}
