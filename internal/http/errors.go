package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kerem-kaynak/dashjs/internal/appcontext"
	"github.com/kerem-kaynak/dashjs/internal/http/middleware"
	"github.com/kerem-kaynak/dashjs/internal/services"
	"github.com/kerem-kaynak/dashjs/internal/utils"
	"go.uber.org/zap"
)

func statusOf(err error) int {
	switch services.KindOf(err) {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindForbidden:
		return http.StatusUnauthorized
	case services.KindValidation:
		return http.StatusUnprocessableEntity
	case services.KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes {"error": ...} with the status of its
// kind. fallback is shown when err has no client-safe message.
func respondError(ctx *appcontext.Context, c *gin.Context, err error, fallback string) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		ctx.Logger.Error(fallback, zap.Error(err), zap.String("path", c.FullPath()))
	}
	c.JSON(status, gin.H{"error": services.MessageOf(err, fallback)})
}

// respondTokenError is respondError for the API token surface.
func respondTokenError(ctx *appcontext.Context, c *gin.Context, err error, fallback string) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		ctx.Logger.Error(fallback, zap.Error(err), zap.String("path", c.FullPath()))
	}
	c.JSON(status, gin.H{"success": false, "message": services.MessageOf(err, fallback)})
}

// callerFrom builds the service caller from the claims and agent flag set
// by the auth middleware. Requests without claims are anonymous.
func callerFrom(c *gin.Context) services.Caller {
	userID, err := utils.GetUserIDFromClaims(c)
	if err != nil {
		userID = uuid.Nil
	}
	return services.Caller{UserID: userID, Agent: middleware.IsAgent(c), Renderer: middleware.IsRenderer(c)}
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return uuid.Nil, false
	}
	return id, true
}
