package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/kerem-kaynak/dashjs/internal/entity"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db         *gorm.DB
	store      *MemoryStore
	mailer     *recordingMailer
	uploadDir  string
	datasets   *DatasetService
	dashboards *DashboardService
	widgets    *WidgetService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, entity.Migrate(db))

	env := &testEnv{
		db:        db,
		store:     NewMemoryStore(),
		mailer:    &recordingMailer{},
		uploadDir: t.TempDir(),
	}
	nop := zap.NewNop()
	env.dashboards = NewDashboardService(db, NopIndexer{}, env.mailer, "https://dash.example.com/", nop)
	env.datasets = NewDatasetService(db, env.store, NewKeyedMutex(), NopIndexer{}, env.dashboards, env.uploadDir, nop)
	env.widgets = NewWidgetService(db)
	return env
}

func (e *testEnv) createUser(t *testing.T, name string) Caller {
	t.Helper()
	user := &entity.User{Email: name + "@example.com", Name: name, Provider: "google", ProviderID: name}
	require.NoError(t, e.db.Create(user).Error)
	return Caller{UserID: user.ID}
}

func (e *testEnv) createDataset(t *testing.T, caller Caller, title string, public bool, content string) *CreateDatasetResult {
	t.Helper()
	result, err := e.datasets.Create(context.Background(), caller, DatasetInput{
		Title:    &title,
		IsPublic: &public,
		Content:  []byte(content),
		MIMEType: MIMETypeJSON,
	})
	require.NoError(t, err)
	return result
}

func (e *testEnv) createDashboard(t *testing.T, caller Caller, datasetID uuid.UUID, title string, public bool) *entity.Dashboard {
	t.Helper()
	dataset := datasetID.String()
	dashboard, err := e.dashboards.Create(context.Background(), caller, DashboardInput{
		Title:     &title,
		DatasetID: &dataset,
		IsPublic:  &public,
	})
	require.NoError(t, err)
	return dashboard
}

func (e *testEnv) createWidget(t *testing.T, caller Caller, dashboardID uuid.UUID, title string) *entity.Widget {
	t.Helper()
	dashboard := dashboardID.String()
	chart := entity.ChartObject{ChartType: "barChart", XAxis: "city", YAxis: "population"}
	widget, err := e.widgets.Create(context.Background(), caller, WidgetInput{
		DashboardID: &dashboard,
		Title:       &title,
		ChartObject: &chart,
	})
	require.NoError(t, err)
	return widget
}

type sentShare struct {
	To, Inviter, Title, Link string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentShare
}

func (m *recordingMailer) SendDashboardShare(ctx context.Context, toEmail, inviterName, dashboardTitle, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentShare{To: toEmail, Inviter: inviterName, Title: dashboardTitle, Link: link})
	return nil
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
