package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kerem-kaynak/dashjs/internal/appcontext"
	"github.com/kerem-kaynak/dashjs/internal/services"
)

func CreateWidget(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.WidgetInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to bind request"})
			return
		}

		widget, err := ctx.Widgets.Create(c.Request.Context(), callerFrom(c), input)
		if err != nil {
			respondError(ctx, c, err, "Failed to create widget")
			return
		}

		c.JSON(http.StatusCreated, widget)
	}
}

func GetWidget(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		widget, err := ctx.Widgets.Get(c.Request.Context(), callerFrom(c), id)
		if err != nil {
			respondError(ctx, c, err, "Failed to get widget")
			return
		}

		c.JSON(http.StatusOK, widget)
	}
}

func UpdateWidget(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input services.WidgetInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to bind request"})
			return
		}

		widget, err := ctx.Widgets.Update(c.Request.Context(), callerFrom(c), id, input)
		if err != nil {
			respondError(ctx, c, err, "Failed to update widget")
			return
		}

		c.JSON(http.StatusOK, widget)
	}
}

func DeleteWidget(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		widget, err := ctx.Widgets.Delete(c.Request.Context(), callerFrom(c), id)
		if err != nil {
			respondError(ctx, c, err, "Failed to delete widget")
			return
		}

		c.JSON(http.StatusOK, widget)
	}
}
