package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/kerem-kaynak/dashjs/internal/utils"
)

const (
	AgentKey      = "agent"
	RendererKey   = "renderer"
	SessionCookie = "token"
	PhantomHeader = "x-phantom-secret"
	TokenHeader   = "x-access-token"
)

// SessionMiddleware attaches session claims when the request carries a
// valid session, and marks the screenshot agent. AgentKey is set only for
// a matching phantom secret; RendererKey is set for the PhantomJS
// user-agent, which anyone can send. It never rejects; use RequireSession
// on routes that need a user.
func SessionMiddleware(secret []byte, phantomSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(SessionCookie)
		if err != nil || tokenString == "" {
			tokenString = bearerToken(c)
		}

		if tokenString != "" {
			if claims, err := utils.ValidateJWT(secret, tokenString); err == nil {
				c.Set(utils.ClaimsKey, claims)
			}
		}

		c.Set(AgentKey, isAgent(c, phantomSecret))
		c.Set(RendererKey, utils.IsPhantomUserAgent(c.Request.UserAgent()))
		c.Next()
	}
}

func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(utils.ClaimsKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "You are not authenticated"})
			return
		}
		c.Next()
	}
}

// TokenMiddleware guards the API token surface. The token is looked up in
// the JSON body, the query string, the x-access-token header and the
// Authorization header, in that order.
func TokenMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := lookupAPIToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "No token provided."})
			return
		}

		claims, err := utils.ValidateJWT(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Failed to authenticate token."})
			return
		}

		c.Set(utils.ClaimsKey, claims)
		c.Next()
	}
}

func IsAgent(c *gin.Context) bool {
	return c.GetBool(AgentKey)
}

func IsRenderer(c *gin.Context) bool {
	return c.GetBool(RendererKey)
}

func isAgent(c *gin.Context, phantomSecret string) bool {
	if phantomSecret == "" {
		return false
	}

	provided := c.Query("phantom")
	if provided == "" {
		provided = c.GetHeader(PhantomHeader)
	}
	return provided != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(phantomSecret)) == 1
}

func lookupAPIToken(c *gin.Context) string {
	if hasJSONBody(c) {
		var body struct {
			Token string `json:"token"`
		}
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err == nil && body.Token != "" {
			return body.Token
		}
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	if token := c.GetHeader(TokenHeader); token != "" {
		return token
	}
	return bearerToken(c)
}

func hasJSONBody(c *gin.Context) bool {
	return c.Request.Body != nil && c.Request.ContentLength != 0 &&
		strings.HasPrefix(c.ContentType(), binding.MIMEJSON)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
