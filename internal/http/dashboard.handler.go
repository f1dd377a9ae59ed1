package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kerem-kaynak/dashjs/internal/appcontext"
	"github.com/kerem-kaynak/dashjs/internal/services"
)

func ListDashboards(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		dashboards, err := ctx.Dashboards.List(c.Request.Context(), callerFrom(c), services.DashboardQuery{
			User:    c.Query("user"),
			Dataset: c.Query("dataset"),
			Title:   c.Query("title"),
		})
		if err != nil {
			respondError(ctx, c, err, "Failed to list dashboards")
			return
		}

		c.JSON(http.StatusOK, dashboards)
	}
}

func GetDashboard(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		dashboard, err := ctx.Dashboards.Get(c.Request.Context(), callerFrom(c), id)
		if err != nil {
			respondError(ctx, c, err, "Failed to get dashboard")
			return
		}

		c.JSON(http.StatusOK, dashboard)
	}
}

func CreateDashboard(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.DashboardInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to bind request"})
			return
		}

		dashboard, err := ctx.Dashboards.Create(c.Request.Context(), callerFrom(c), input)
		if err != nil {
			respondError(ctx, c, err, "Failed to create dashboard")
			return
		}

		c.JSON(http.StatusCreated, dashboard)
	}
}

func UpdateDashboard(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input services.DashboardInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to bind request"})
			return
		}

		dashboard, err := ctx.Dashboards.Update(c.Request.Context(), callerFrom(c), id, input)
		if err != nil {
			respondError(ctx, c, err, "Failed to update dashboard")
			return
		}

		c.JSON(http.StatusOK, dashboard)
	}
}

func DeleteDashboard(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		dashboard, err := ctx.Dashboards.Delete(c.Request.Context(), callerFrom(c), id)
		if err != nil {
			respondError(ctx, c, err, "Failed to delete dashboard")
			return
		}

		c.JSON(http.StatusOK, dashboard)
	}
}

func GetDashboardWidgets(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		widgets, err := ctx.Dashboards.Widgets(c.Request.Context(), callerFrom(c), id)
		if err != nil {
			respondError(ctx, c, err, "Failed to get widgets")
			return
		}

		c.JSON(http.StatusOK, widgets)
	}
}

func GetGraphGroups(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		groups, err := ctx.Widgets.GraphGroups(c.Request.Context(), callerFrom(c), id)
		if err != nil {
			respondError(ctx, c, err, "Failed to get graph groups")
			return
		}

		c.JSON(http.StatusOK, groups)
	}
}

func AddGraphGroup(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var request struct {
			Name string `json:"name"`
		}
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&request); err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to bind request"})
				return
			}
		}

		groups, err := ctx.Widgets.AddGraphGroup(c.Request.Context(), callerFrom(c), id, request.Name)
		if err != nil {
			respondError(ctx, c, err, "Failed to add graph group")
			return
		}

		c.JSON(http.StatusCreated, groups)
	}
}

func ShareDashboard(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var request struct {
			Email string `json:"email" binding:"required,email"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "A valid e-mail address is required"})
			return
		}

		if err := ctx.Dashboards.Share(c.Request.Context(), callerFrom(c), id, request.Email); err != nil {
			respondError(ctx, c, err, "Failed to share dashboard")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Dashboard shared"})
	}
}
