package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kerem-kaynak/dashjs/internal/appcontext"
)

// SearchResources searches dataset and dashboard metadata. Prefix the
// query with "ds:" or "db:" to search one kind only.
func SearchResources(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing search query"})
			return
		}

		hits, err := ctx.Search.Search(c.Request.Context(), query, callerFrom(c).UserID)
		if err != nil {
			respondError(ctx, c, err, "Failed to perform search")
			return
		}

		c.JSON(http.StatusOK, gin.H{"results": hits})
	}
}
