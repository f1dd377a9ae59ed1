package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kerem-kaynak/dashjs/internal/entity"
	"github.com/kerem-kaynak/dashjs/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (a *testAPI) dash(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(middleware.TokenHeader, token)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func TestExternalCreateDataset(t *testing.T) {
	api := newTestAPI(t)
	alice := api.createUser(t, "alice")
	token := api.apiToken(t, alice)

	tests := []struct {
		name     string
		body     map[string]any
		wantCode int
		wantMsg  string
	}{
		{
			name:     "array data",
			body:     map[string]any{"title": "Sales", "data": []map[string]any{{"id": 1, "total": 10}}},
			wantCode: http.StatusCreated,
		},
		{
			name:     "string encoded data",
			body:     map[string]any{"title": "Sales", "data": `[{"id":1,"total":10}]`},
			wantCode: http.StatusCreated,
		},
		{
			name:     "single object",
			body:     map[string]any{"title": "Sales", "data": map[string]any{"id": 1, "region": map[string]any{"name": "EU"}}},
			wantCode: http.StatusCreated,
		},
		{
			name:     "missing data",
			body:     map[string]any{"title": "Sales"},
			wantCode: http.StatusUnprocessableEntity,
			wantMsg:  "you must provide the records of the dataset as {data:[...]}",
		},
		{
			name:     "missing title",
			body:     map[string]any{"data": []map[string]any{{"id": 1}}},
			wantCode: http.StatusUnprocessableEntity,
			wantMsg:  "A dataset needs a title",
		},
		{
			name:     "unknown template",
			body:     map[string]any{"title": "Sales", "data": []map[string]any{{"id": 1}}, "templateDashboard": uuid.NewString()},
			wantCode: http.StatusNotFound,
			wantMsg:  "No matching template found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.dash(t, http.MethodPost, "/dash/datasets", token, tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())

			response := decode[map[string]any](t, w)
			if tt.wantMsg != "" {
				assert.Equal(t, false, response["success"])
				assert.Equal(t, tt.wantMsg, response["message"])
				return
			}
			assert.Equal(t, true, response["success"])
			assert.NotEmpty(t, response["datasetId"])
			assert.NotContains(t, response, "dashboardId")
		})
	}
}

func TestExternalCreateDatasetFromTemplate(t *testing.T) {
	api := newTestAPI(t)
	alice := api.createUser(t, "alice")
	source := api.createDataset(t, alice, "Source", true)
	template := api.createDashboard(t, alice, source.ID, "Template", true)

	w := api.dash(t, http.MethodPost, "/dash/datasets", api.apiToken(t, alice), map[string]any{
		"title":             "Sales",
		"data":              []map[string]any{{"id": 1, "total": 10}},
		"templateDashboard": template.ID.String(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	response := decode[map[string]any](t, w)
	dashboardID, ok := response["dashboardId"].(string)
	require.True(t, ok)

	var clone entity.Dashboard
	require.NoError(t, api.ctx.DB.First(&clone, "id = ?", dashboardID).Error)
	assert.Equal(t, response["datasetId"], clone.DatasetID.String())
	require.NotNil(t, clone.OriginalDashboardID)
	assert.Equal(t, template.ID, *clone.OriginalDashboardID)
}

func TestExternalTokenAuthentication(t *testing.T) {
	api := newTestAPI(t)
	alice := api.createUser(t, "alice")

	w := api.dash(t, http.MethodGet, "/dash/datasets", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"No token provided."}`, w.Body.String())

	session := api.sessionCookie(t, alice)
	w = api.dash(t, http.MethodGet, "/dash/datasets", session.Value, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Failed to authenticate token."}`, w.Body.String())

	w = api.dash(t, http.MethodPost, "/dash/datasets", "", map[string]any{
		"token": api.apiToken(t, alice),
		"title": "Body token",
		"data":  []map[string]any{{"id": 1}},
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestExternalListAndEntries(t *testing.T) {
	api := newTestAPI(t)
	alice := api.createUser(t, "alice")
	bob := api.createUser(t, "bob")
	mine := api.createDataset(t, alice, "Mine", false)
	api.createDataset(t, bob, "Theirs", true)
	token := api.apiToken(t, alice)

	w := api.dash(t, http.MethodGet, "/dash/datasets", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[[]map[string]any](t, w)
	require.Len(t, listed, 1)
	assert.Equal(t, "Mine", listed[0]["title"])
	assert.NotContains(t, listed[0], "user")

	path := "/dash/datasets/" + mine.ID.String() + "/entries"

	w = api.dash(t, http.MethodPost, path, token, map[string]any{
		"title":    "Mine, nightly",
		"isPublic": true,
		"data":     []map[string]any{{"_id": 9, "city": "Lisbon"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	patched := decode[map[string]any](t, w)
	assert.Equal(t, true, patched["success"])
	assert.Equal(t, float64(1), patched["addedEntries"])

	var stored entity.Dataset
	require.NoError(t, api.ctx.DB.First(&stored, "id = ?", mine.ID).Error)
	assert.Equal(t, "Mine, nightly", stored.Title)
	assert.True(t, stored.IsPublic)

	w = api.dash(t, http.MethodDelete, path, token, map[string]any{
		"data": []map[string]any{{"_id": 9}, {"id": 42}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	deleted := decode[map[string]any](t, w)
	assert.Equal(t, float64(1), deleted["deletedEntries"])
	assert.Equal(t, float64(1), deleted["entriesNotDeleted"])

	w = api.dash(t, http.MethodDelete, path, token, map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["success"])

	w = api.dash(t, http.MethodPost, path, api.apiToken(t, bob), map[string]any{
		"data": []map[string]any{{"id": 1, "city": "Oslo"}},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
