package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/kerem-kaynak/dashjs/internal/entity"
	"github.com/kerem-kaynak/dashjs/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const citiesJSON = `[{"id":1,"city":"Berlin","stats":{"population":3.6}},{"id":2,"city":"Paris","stats":{"population":2.1}}]`

func TestDatasetCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")

	t.Run("JSON content is flattened and synced", func(t *testing.T) {
		result := env.createDataset(t, alice, "Cities", true, citiesJSON)

		assert.Equal(t, alice.UserID, result.UserID)
		assert.Equal(t, entity.DatasetFileType, result.FileType)
		assert.Nil(t, result.DashboardID)
		require.Len(t, result.JSONData, 2)
		assert.Equal(t, 3.6, result.JSONData[0]["stats.population"])

		key := utils.DatasetFileName(alice.UserID, result.ID)
		remote, ok := env.store.Object(key)
		require.True(t, ok)

		local, err := os.ReadFile(utils.DatasetFilePath(env.uploadDir, alice.UserID, result.ID))
		require.NoError(t, err)
		assert.JSONEq(t, string(remote), string(local))
	})

	t.Run("CSV content is coerced", func(t *testing.T) {
		result, err := env.datasets.Create(ctx, alice, DatasetInput{
			Title:    strPtr("Scores"),
			Content:  []byte("name,score\nann,10\nbob,Infinity\n"),
			MIMEType: MIMETypeCSV,
		})
		require.NoError(t, err)
		require.Len(t, result.JSONData, 2)
		assert.Equal(t, 10.0, result.JSONData[0]["score"])
		assert.Nil(t, result.JSONData[1]["score"])
	})

	t.Run("unsupported MIME type", func(t *testing.T) {
		_, err := env.datasets.Create(ctx, alice, DatasetInput{
			Title:    strPtr("Notes"),
			Content:  []byte("hello"),
			MIMEType: "text/plain",
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))
		assert.Equal(t, "This is not valid file type. Upload either .csv or .json", MessageOf(err, ""))
	})

	t.Run("scalar JSON is rejected", func(t *testing.T) {
		_, err := env.datasets.Create(ctx, alice, DatasetInput{
			Title:    strPtr("Scalar"),
			Content:  []byte(`42`),
			MIMEType: MIMETypeJSON,
		})
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("missing title", func(t *testing.T) {
		_, err := env.datasets.Create(ctx, alice, DatasetInput{
			Content:  []byte(citiesJSON),
			MIMEType: MIMETypeJSON,
		})
		assert.True(t, errors.Is(err, ErrValidation))
	})
}

func TestDatasetCreateWithTemplate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	source := env.createDataset(t, alice, "Cities", true, citiesJSON)
	template := env.createDashboard(t, alice, source.ID, "City overview", true)
	env.createWidget(t, alice, template.ID, "Population")
	env.createWidget(t, alice, template.ID, "Area")
	_, err := env.widgets.AddGraphGroup(ctx, alice, template.ID, "Europe")
	require.NoError(t, err)

	t.Run("dashboard is cloned onto the new dataset", func(t *testing.T) {
		result, err := env.datasets.Create(ctx, bob, DatasetInput{
			Title:             strPtr("My cities"),
			ShortDescription:  strPtr("copy"),
			IsPublic:          boolPtr(false),
			TemplateDashboard: template.ID.String(),
			Content:           []byte(citiesJSON),
			MIMEType:          MIMETypeJSON,
		})
		require.NoError(t, err)
		require.NotNil(t, result.DashboardID)

		clone, err := env.dashboards.Get(ctx, bob, *result.DashboardID)
		require.NoError(t, err)
		assert.Equal(t, result.ID, clone.DatasetID)
		assert.Equal(t, bob.UserID, clone.UserID)
		assert.Equal(t, "My cities", clone.Title)
		assert.Equal(t, "copy", clone.ShortDescription)
		assert.False(t, clone.IsPublic)
		assert.Equal(t, entity.DefaultScreenshot, clone.Screenshot)
		require.NotNil(t, clone.OriginalDashboardID)
		assert.Equal(t, template.ID, *clone.OriginalDashboardID)

		require.Len(t, clone.Widgets, 2)
		original, err := env.dashboards.Widgets(ctx, alice, template.ID)
		require.NoError(t, err)
		for _, w := range clone.Widgets {
			assert.Equal(t, clone.ID, w.DashboardID)
			for _, o := range original {
				assert.NotEqual(t, o.ID, w.ID)
			}
		}

		groups, err := env.widgets.GraphGroups(ctx, bob, clone.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{DefaultGraphGroup, "Europe"}, groups)
	})

	t.Run("unknown template rolls back the dataset", func(t *testing.T) {
		before, err := env.datasets.ListOwned(ctx, bob)
		require.NoError(t, err)
		filesBefore, err := os.ReadDir(env.uploadDir)
		require.NoError(t, err)

		_, err = env.datasets.Create(ctx, bob, DatasetInput{
			Title:             strPtr("Orphan"),
			TemplateDashboard: uuid.NewString(),
			Content:           []byte(citiesJSON),
			MIMEType:          MIMETypeJSON,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, "No matching template found", MessageOf(err, ""))

		after, err := env.datasets.ListOwned(ctx, bob)
		require.NoError(t, err)
		assert.Len(t, after, len(before))

		filesAfter, err := os.ReadDir(env.uploadDir)
		require.NoError(t, err)
		assert.Len(t, filesAfter, len(filesBefore))
	})

	t.Run("private template of another user is refused", func(t *testing.T) {
		private := env.createDashboard(t, alice, source.ID, "Private", false)
		_, err := env.datasets.Create(ctx, bob, DatasetInput{
			Title:             strPtr("Sneaky"),
			TemplateDashboard: private.ID.String(),
			Content:           []byte(citiesJSON),
			MIMEType:          MIMETypeJSON,
		})
		assert.True(t, errors.Is(err, ErrForbidden))
	})
}

func TestDatasetVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	private := env.createDataset(t, alice, "Secret", false, citiesJSON)
	public := env.createDataset(t, alice, "Open", true, citiesJSON)

	t.Run("owner lists private datasets", func(t *testing.T) {
		datasets, err := env.datasets.List(ctx, alice, DatasetQuery{User: alice.UserID.String()})
		require.NoError(t, err)
		assert.Len(t, datasets, 2)
	})

	t.Run("others only see public datasets", func(t *testing.T) {
		datasets, err := env.datasets.List(ctx, bob, DatasetQuery{User: alice.UserID.String()})
		require.NoError(t, err)
		require.Len(t, datasets, 1)
		assert.Equal(t, public.ID, datasets[0].ID)

		datasets, err = env.datasets.List(ctx, bob, DatasetQuery{})
		require.NoError(t, err)
		require.Len(t, datasets, 1)
	})

	t.Run("title filter", func(t *testing.T) {
		datasets, err := env.datasets.List(ctx, alice, DatasetQuery{User: alice.UserID.String(), Title: "Secret"})
		require.NoError(t, err)
		require.Len(t, datasets, 1)
		assert.Equal(t, private.ID, datasets[0].ID)
	})

	t.Run("private get is forbidden for others", func(t *testing.T) {
		_, err := env.datasets.Get(ctx, bob, private.ID)
		assert.True(t, errors.Is(err, ErrForbidden))

		_, err = env.datasets.Get(ctx, Caller{}, private.ID)
		assert.True(t, errors.Is(err, ErrForbidden))
	})

	t.Run("agent reads private datasets", func(t *testing.T) {
		dataset, err := env.datasets.Get(ctx, Caller{Agent: true}, private.ID)
		require.NoError(t, err)
		assert.Len(t, dataset.JSONData, 2)
	})

	t.Run("owner reads content", func(t *testing.T) {
		dataset, err := env.datasets.Get(ctx, alice, private.ID)
		require.NoError(t, err)
		assert.Equal(t, "Berlin", dataset.JSONData[0]["city"])
	})

	t.Run("missing dataset", func(t *testing.T) {
		_, err := env.datasets.Get(ctx, alice, uuid.New())
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestDatasetReplace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	dataset := env.createDataset(t, alice, "Cities", false, citiesJSON)

	t.Run("owner replaces content and metadata", func(t *testing.T) {
		replaced, err := env.datasets.Replace(ctx, alice, dataset.ID, DatasetInput{
			Title:    strPtr("Towns"),
			IsPublic: boolPtr(true),
			Content:  []byte("town,size\nBonn,0.3\n"),
			MIMEType: MIMETypeCSV,
		})
		require.NoError(t, err)
		assert.Equal(t, "Towns", replaced.Title)
		assert.True(t, replaced.IsPublic)
		assert.Equal(t, []map[string]any{{"town": "Bonn", "size": 0.3}}, replaced.JSONData)

		got, err := env.datasets.Get(ctx, bob, dataset.ID)
		require.NoError(t, err)
		assert.Equal(t, "Bonn", got.JSONData[0]["town"])
	})

	t.Run("others cannot replace", func(t *testing.T) {
		_, err := env.datasets.Replace(ctx, bob, dataset.ID, DatasetInput{
			Content:  []byte(citiesJSON),
			MIMEType: MIMETypeJSON,
		})
		assert.True(t, errors.Is(err, ErrForbidden))
	})
}

func TestDatasetEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	dataset := env.createDataset(t, alice, "Points", false, `[{"id":1,"x":1},{"id":2,"x":2}]`)

	t.Run("upsert", func(t *testing.T) {
		result, err := env.datasets.PatchEntries(ctx, alice, dataset.ID, EntriesInput{Data: []map[string]any{
			{"id": 2.0, "x": 9.0},
			{"id": 3.0, "x": 3.0},
		}})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.AddedEntries)
		assert.Equal(t, 1, result.UpdatedEntries)

		got, err := env.datasets.Get(ctx, alice, dataset.ID)
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{
			{"id": 1.0, "x": 1.0},
			{"id": 2.0, "x": 9.0},
			{"id": 3.0, "x": 3.0},
		}, got.JSONData)

		remote, ok := env.store.Object(utils.DatasetFileName(alice.UserID, dataset.ID))
		require.True(t, ok)
		var stored []map[string]any
		require.NoError(t, json.Unmarshal(remote, &stored))
		assert.Len(t, stored, 3)
	})

	t.Run("delete", func(t *testing.T) {
		result, err := env.datasets.DeleteEntries(ctx, alice, dataset.ID, EntriesInput{Data: []map[string]any{
			{"id": 1.0},
			{"id": 99.0},
		}})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.DeletedEntries)
		assert.Equal(t, 1, result.EntriesNotDeleted)

		got, err := env.datasets.Get(ctx, alice, dataset.ID)
		require.NoError(t, err)
		assert.Len(t, got.JSONData, 2)
	})

	t.Run("delete without data", func(t *testing.T) {
		_, err := env.datasets.DeleteEntries(ctx, alice, dataset.ID, EntriesInput{})
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("others cannot patch", func(t *testing.T) {
		_, err := env.datasets.PatchEntries(ctx, bob, dataset.ID, EntriesInput{Data: []map[string]any{{"id": 5.0}}})
		assert.True(t, errors.Is(err, ErrForbidden))
	})
}

func TestDatasetDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	dataset := env.createDataset(t, alice, "Cities", true, citiesJSON)
	dashboard := env.createDashboard(t, alice, dataset.ID, "Overview", true)

	_, err := env.datasets.Delete(ctx, bob, dataset.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	deleted, err := env.datasets.Delete(ctx, alice, dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, dataset.ID, deleted.ID)

	_, err = env.datasets.Get(ctx, alice, dataset.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, ok := env.store.Object(utils.DatasetFileName(alice.UserID, dataset.ID))
	assert.False(t, ok)

	_, err = os.Stat(utils.DatasetFilePath(env.uploadDir, alice.UserID, dataset.ID))
	assert.True(t, os.IsNotExist(err))

	_, err = env.dashboards.Get(ctx, alice, dashboard.ID)
	assert.NoError(t, err)
}

func TestDatasetFork(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	public := env.createDataset(t, alice, "Cities", true, citiesJSON)
	private := env.createDataset(t, alice, "Secret", false, citiesJSON)

	fork, err := env.datasets.Fork(ctx, bob, public.ID)
	require.NoError(t, err)
	assert.NotEqual(t, public.ID, fork.ID)
	assert.Equal(t, bob.UserID, fork.UserID)
	assert.Equal(t, public.Title, fork.Title)
	require.NotNil(t, fork.OriginalDatasetID)
	assert.Equal(t, public.ID, *fork.OriginalDatasetID)
	assert.Equal(t, public.JSONData, fork.JSONData)

	_, ok := env.store.Object(utils.DatasetFileName(bob.UserID, fork.ID))
	assert.True(t, ok)

	got, err := env.datasets.Get(ctx, bob, fork.ID)
	require.NoError(t, err)
	assert.Equal(t, public.JSONData, got.JSONData)

	_, err = env.datasets.Fork(ctx, bob, private.ID)
	assert.True(t, errors.Is(err, ErrForbidden))
}

func TestDatasetPatchEntriesRequiresData(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	dataset := env.createDataset(t, alice, "Points", false, `[{"id":1}]`)

	_, err := env.datasets.PatchEntries(context.Background(), alice, dataset.ID, EntriesInput{})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestDatasetEntriesCarryMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	dataset := env.createDataset(t, alice, "Points", false, `[{"id":1,"x":1}]`)

	_, err := env.datasets.PatchEntries(ctx, alice, dataset.ID, EntriesInput{
		Title:            strPtr("Measured points"),
		ShortDescription: strPtr("Nightly feed"),
		IsPublic:         boolPtr(true),
		Data:             []map[string]any{{"id": 2.0, "x": 2.0}},
	})
	require.NoError(t, err)

	var stored entity.Dataset
	require.NoError(t, env.db.First(&stored, "id = ?", dataset.ID).Error)
	assert.Equal(t, "Measured points", stored.Title)
	assert.Equal(t, "Nightly feed", stored.ShortDescription)
	assert.True(t, stored.IsPublic)

	_, err = env.datasets.DeleteEntries(ctx, alice, dataset.ID, EntriesInput{
		IsPublic: boolPtr(false),
		Data:     []map[string]any{{"id": 1.0}},
	})
	require.NoError(t, err)

	require.NoError(t, env.db.First(&stored, "id = ?", dataset.ID).Error)
	assert.Equal(t, "Measured points", stored.Title)
	assert.False(t, stored.IsPublic)

	_, err = env.datasets.PatchEntries(ctx, alice, dataset.ID, EntriesInput{
		Title: strPtr(""),
		Data:  []map[string]any{{"id": 3.0}},
	})
	assert.True(t, errors.Is(err, ErrValidation))
}
