package http

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/kerem-kaynak/dashjs/internal/appcontext"
	"github.com/kerem-kaynak/dashjs/internal/entity"
	"github.com/kerem-kaynak/dashjs/internal/services"
)

// externalDataset hides the owner, which is always the token subject.
type externalDataset struct {
	entity.Dataset
	UserID *struct{} `json:"user,omitempty"`
}

type externalDatasetRequest struct {
	Data              json.RawMessage `json:"data"`
	TemplateDashboard string          `json:"templateDashboard"`
	Title             *string         `json:"title"`
	ShortDescription  *string         `json:"shortDescription"`
	IsPublic          *bool           `json:"isPublic"`
}

func ExternalListDatasets(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		datasets, err := ctx.Datasets.ListOwned(c.Request.Context(), callerFrom(c))
		if err != nil {
			respondTokenError(ctx, c, err, "Something went wrong when trying to list datasets")
			return
		}

		out := make([]externalDataset, 0, len(datasets))
		for _, d := range datasets {
			out = append(out, externalDataset{Dataset: d})
		}
		c.JSON(http.StatusOK, out)
	}
}

// ExternalCreateDataset creates a dataset from JSON records in the body.
// data may be an array, a single object, or either encoded as a string.
func ExternalCreateDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request externalDatasetRequest
		if err := c.ShouldBindBodyWith(&request, binding.JSON); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "message": "Failed to bind request"})
			return
		}

		content, err := externalContent(request.Data)
		if err != nil {
			respondTokenError(ctx, c, err, "Something went wrong when trying to create this dataset")
			return
		}

		result, err := ctx.Datasets.Create(c.Request.Context(), callerFrom(c), services.DatasetInput{
			Title:             request.Title,
			ShortDescription:  request.ShortDescription,
			IsPublic:          request.IsPublic,
			TemplateDashboard: request.TemplateDashboard,
			Content:           content,
			MIMEType:          services.MIMETypeJSON,
		})
		if err != nil {
			respondTokenError(ctx, c, err, "Something went wrong when trying to create this dataset")
			return
		}

		response := gin.H{"success": true, "datasetId": result.ID}
		if result.DashboardID != nil {
			response["dashboardId"] = *result.DashboardID
		}
		c.JSON(http.StatusCreated, response)
	}
}

func ExternalPatchEntries(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var request entriesRequest
		if err := c.ShouldBindBodyWith(&request, binding.JSON); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "message": "Failed to bind request"})
			return
		}

		result, err := ctx.Datasets.PatchEntries(c.Request.Context(), callerFrom(c), id, request.input())
		if err != nil {
			respondTokenError(ctx, c, err, "Something went wrong when trying to update this dataset")
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func ExternalDeleteEntries(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var request entriesRequest
		if err := c.ShouldBindBodyWith(&request, binding.JSON); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "message": "Failed to bind request"})
			return
		}

		result, err := ctx.Datasets.DeleteEntries(c.Request.Context(), callerFrom(c), id, request.input())
		if err != nil {
			respondTokenError(ctx, c, err, "Something went wrong when trying to update this dataset")
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func externalContent(data json.RawMessage) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, services.Validation("you must provide the records of the dataset as {data:[...]}", nil)
	}

	if data[0] == '"' {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return nil, services.Validation("data is not valid JSON", err)
		}
		return []byte(encoded), nil
	}
	return data, nil
}
