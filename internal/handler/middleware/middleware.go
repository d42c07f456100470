package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	authorizationHeader = "Authorization"

	UserIDKey   = "userID"
	UserNameKey = "userName"
)

func AuthMiddleware(jwtSecret string, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(authorizationHeader)
		if header == "" {
			log.Warn("auth middleware: auth header is empty")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "auth header is empty",
			})
			return
		}

		headerParts := strings.Split(header, " ")
		if headerParts[0] != "Bearer" || len(headerParts) != 2 {
			log.Warn("auth middleware: invalid auth header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid auth header format",
			})
			return
		}

		tokenString := headerParts[1]
		if len(tokenString) == 0 {
			log.Warn("auth middleware: token is empty")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "token is empty",
			})
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(jwtSecret), nil
		})

		if err != nil {
			log.Warn("auth middleware: failed to parse token", slog.Any("error", err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			log.Warn("auth middleware: token is not valid or claims are corrupted")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "token is not valid",
			})
			return
		}

		userID, ok := claims["sub"].(string)
		if !ok {
			log.Warn("auth middleware: 'sub' claim is missing or not a string")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token payload",
			})
			return
		}

		userName, ok := claims["name"].(string)
		if !ok {
			log.Warn("auth middleware: 'name' claim is missing or not a string")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token payload",
			})
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(UserNameKey, userName)
		c.Next()
	}
}
