package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"swiftdash/internal/principal"
)

const principalKey = "principal"

// Auth validates the bearer token and resolves the caller into a Principal
// injected into the request context. The token carries the caller id in "sub"
// and the role tag in "role"; downstream ownership checks trust this identity.
func Auth(secret string, resolver *principal.Resolver) gin.HandlerFunc {
	log := logrus.WithField("component", "auth")

	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		parts := strings.Split(raw, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			log.WithError(err).Warn("token validation failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		subject, _ := claims["sub"].(string)
		roleValue, _ := claims["role"].(string)
		role := principal.Role(roleValue)
		if strings.TrimSpace(subject) == "" || !role.Valid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := primitive.ObjectIDFromHex(subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		p, err := resolver.Resolve(c.Request.Context(), role, id)
		if err != nil {
			log.WithError(err).Warn("principal resolution failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireRole rejects callers whose resolved role is not among roles.
func RequireRole(roles ...principal.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		for _, role := range roles {
			if p.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// CurrentPrincipal returns the resolved caller, if any.
func CurrentPrincipal(c *gin.Context) (principal.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return principal.Principal{}, false
	}
	p, ok := value.(principal.Principal)
	return p, ok
}

// SetPrincipal injects a principal directly; used by handler tests.
func SetPrincipal(c *gin.Context, p principal.Principal) {
	c.Set(principalKey, p)
}
