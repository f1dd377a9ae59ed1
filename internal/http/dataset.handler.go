package http

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/kerem-kaynak/dashjs/internal/appcontext"
	"github.com/kerem-kaynak/dashjs/internal/services"
	"go.uber.org/zap"
)

const maxUploadSize = 32 << 20

type entriesRequest struct {
	Title            *string          `json:"title"`
	ShortDescription *string          `json:"shortDescription"`
	IsPublic         *bool            `json:"isPublic"`
	Data             []map[string]any `json:"data"`
}

func (r entriesRequest) input() services.EntriesInput {
	return services.EntriesInput{
		Title:            r.Title,
		ShortDescription: r.ShortDescription,
		IsPublic:         r.IsPublic,
		Data:             r.Data,
	}
}

func ListDatasets(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		datasets, err := ctx.Datasets.List(c.Request.Context(), callerFrom(c), services.DatasetQuery{
			User:  c.Query("user"),
			Title: c.Query("title"),
		})
		if err != nil {
			respondError(ctx, c, err, "Failed to list datasets")
			return
		}

		c.JSON(http.StatusOK, datasets)
	}
}

func GetDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		dataset, err := ctx.Datasets.Get(c.Request.Context(), callerFrom(c), id)
		if err != nil {
			respondError(ctx, c, err, "Something went wrong when trying to get this dataset")
			return
		}

		c.JSON(http.StatusOK, dataset)
	}
}

func UploadDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		input, err := readUpload(ctx, c)
		if err != nil {
			respondError(ctx, c, err, "Failed to read uploaded file")
			return
		}

		result, err := ctx.Datasets.Create(c.Request.Context(), callerFrom(c), input)
		if err != nil {
			respondError(ctx, c, err, "Something went wrong when trying to create this dataset")
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func ReplaceDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		input, err := readUpload(ctx, c)
		if err != nil {
			respondError(ctx, c, err, "Failed to read uploaded file")
			return
		}

		dataset, err := ctx.Datasets.Replace(c.Request.Context(), callerFrom(c), id, input)
		if err != nil {
			respondError(ctx, c, err, "Something went wrong when trying to replace this dataset")
			return
		}

		c.JSON(http.StatusCreated, dataset)
	}
}

func PatchDatasetEntries(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var request entriesRequest
		if err := c.ShouldBindBodyWith(&request, binding.JSON); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to bind request"})
			return
		}

		result, err := ctx.Datasets.PatchEntries(c.Request.Context(), callerFrom(c), id, request.input())
		if err != nil {
			respondError(ctx, c, err, "Something went wrong when trying to update this dataset")
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func DeleteDatasetEntries(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var request entriesRequest
		if err := c.ShouldBindBodyWith(&request, binding.JSON); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to bind request"})
			return
		}

		result, err := ctx.Datasets.DeleteEntries(c.Request.Context(), callerFrom(c), id, request.input())
		if err != nil {
			respondError(ctx, c, err, "Something went wrong when trying to update this dataset")
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func DeleteDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		dataset, err := ctx.Datasets.Delete(c.Request.Context(), callerFrom(c), id)
		if err != nil {
			respondError(ctx, c, err, "Something went wrong when trying to delete this dataset")
			return
		}

		c.JSON(http.StatusOK, dataset)
	}
}

func ForkDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		dataset, err := ctx.Datasets.Fork(c.Request.Context(), callerFrom(c), id)
		if err != nil {
			respondError(ctx, c, err, "Something went wrong when trying to fork this dataset")
			return
		}

		c.JSON(http.StatusCreated, dataset)
	}
}

// readUpload reads the multipart "file" part and the metadata fields next
// to it. Temporary form files are removed before returning.
func readUpload(ctx *appcontext.Context, c *gin.Context) (services.DatasetInput, error) {
	var input services.DatasetInput

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	fileHeader, err := c.FormFile("file")
	if c.Request.MultipartForm != nil {
		defer func() {
			if err := c.Request.MultipartForm.RemoveAll(); err != nil {
				ctx.Logger.Warn("Failed to remove temporary upload files", zap.Error(err))
			}
		}()
	}
	if err != nil {
		return input, services.Validation("A file is required", err)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return input, services.Validation("Failed to open uploaded file", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return input, services.Validation("Failed to read uploaded file", err)
	}

	input.Content = content
	input.MIMEType = detectMIMEType(fileHeader.Header.Get("Content-Type"), content)

	if title, ok := c.GetPostForm("title"); ok {
		input.Title = &title
	}
	if description, ok := c.GetPostForm("shortDescription"); ok {
		input.ShortDescription = &description
	}
	if raw, ok := c.GetPostForm("isPublic"); ok {
		isPublic, err := strconv.ParseBool(raw)
		if err != nil {
			return input, services.Validation("isPublic must be true or false", err)
		}
		input.IsPublic = &isPublic
	}
	input.TemplateDashboard = c.PostForm("templateDashboard")

	return input, nil
}

// detectMIMEType trusts the declared part type unless it is missing or
// generic, in which case the content is sniffed.
func detectMIMEType(declared string, content []byte) string {
	if declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			declared = mediaType
		}
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	detected := mimetype.Detect(content)
	switch {
	case detected.Is(services.MIMETypeJSON):
		return services.MIMETypeJSON
	case detected.Is(services.MIMETypeCSV):
		return services.MIMETypeCSV
	}
	return detected.String()
}
