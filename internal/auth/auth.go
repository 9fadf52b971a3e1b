// Package auth verifies the identity tokens issued by the external
// identity service and resolves the caller's operator and assigned stand.
package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	operatorIDKey = "auth.operator_id"
	standIDKey    = "auth.stand_id"
)

// Middleware validates a Bearer JWT and stores the operator and stand
// claims on the request context. Every session route is scoped by the
// stand resolved here, never by anything the client sends in the body.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must be 'Bearer <token>'"})
			return
		}

		token, err := jwt.Parse(strings.TrimSpace(parts[1]), func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}
		operatorID, okOp := claimInt64(claims, "operator_id")
		standID, okStand := claimInt64(claims, "stand_id")
		if !okOp || !okStand {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token is missing operator or stand claim"})
			return
		}

		c.Set(operatorIDKey, operatorID)
		c.Set(standIDKey, standID)
		c.Next()
	}
}

func claimInt64(claims jwt.MapClaims, key string) (int64, bool) {
	// JSON numbers arrive as float64.
	v, ok := claims[key].(float64)
	if !ok {
		return 0, false
	}
	return int64(v), true
}

// OperatorID returns the authenticated operator for the request.
func OperatorID(c *gin.Context) int64 {
	return c.GetInt64(operatorIDKey)
}

// StandID returns the caller's assigned stand for the request.
func StandID(c *gin.Context) int64 {
	return c.GetInt64(standIDKey)
}
