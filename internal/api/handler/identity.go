package handler

import "github.com/gin-gonic/gin"

// IdentityKey is where the auth middleware stores the authenticated courier
// id on the gin context.
const IdentityKey = "courier_id"

// CallerID returns the authenticated courier id, or "" when unauthenticated.
func CallerID(c *gin.Context) string {
	if id, ok := c.Get(IdentityKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
