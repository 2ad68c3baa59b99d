package router

import (
	"net/http"
	"strings"

	"github.com/curbfleet/dispatch/internal/api/handler"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// CourierClaims are the HMAC-signed bearer claims carried by courier agents.
type CourierClaims struct {
	CourierID string `json:"courier_id"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the bearer token and stores the caller's courier
// identity on the request context. Handlers compare it against submitted ids.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			return
		}

		claims, err := validateToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(handler.IdentityKey, claims.CourierID)
		c.Next()
	}
}

func validateToken(tokenString, secret string) (*CourierClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CourierClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*CourierClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

// SignToken creates an HMAC bearer token for a courier. Used by tests and
// provisioning tooling.
func SignToken(courierID, secret string) (string, error) {
	claims := CourierClaims{
		CourierID: courierID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "dispatch-tracking",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
