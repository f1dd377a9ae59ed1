package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kerem-kaynak/dashjs/internal/entity"
	"github.com/kerem-kaynak/dashjs/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// widgetOrder sorts widgets by grid position. "row" is a keyword in some
// dialects, so the columns go through the quoting clause builder.
var widgetOrder = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "row"}},
	{Column: clause.Column{Name: "col"}},
}}

type DashboardQuery struct {
	User    string
	Dataset string
	Title   string
}

// DashboardInput holds the writable fields of a dashboard. Nil fields are
// left untouched on update.
type DashboardInput struct {
	Title            *string   `json:"title"`
	ShortDescription *string   `json:"shortDescription"`
	DatasetID        *string   `json:"dataset"`
	IsPublic         *bool     `json:"isPublic"`
	Screenshot       *string   `json:"screenshot"`
	Tags             *[]string `json:"tags"`
}

type DashboardService struct {
	db      *gorm.DB
	indexer Indexer
	mailer  Mailer
	appURL  string
	logger  *zap.Logger
}

func NewDashboardService(db *gorm.DB, indexer Indexer, mailer Mailer, appURL string, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		db:      db,
		indexer: indexer,
		mailer:  mailer,
		appURL:  strings.TrimSuffix(appURL, "/"),
		logger:  logger,
	}
}

// List returns the public dashboards plus the caller's own.
func (s *DashboardService) List(ctx context.Context, caller Caller, query DashboardQuery) ([]entity.Dashboard, error) {
	tx := s.db.WithContext(ctx).Order("last_updated DESC")

	if caller.UserID != uuid.Nil {
		tx = tx.Where("is_public = ? OR user_id = ?", true, caller.UserID)
	} else {
		tx = tx.Where("is_public = ?", true)
	}

	if query.User != "" {
		userID, err := uuid.Parse(query.User)
		if err != nil {
			return nil, Validation("Invalid user id", err)
		}
		tx = tx.Where("user_id = ?", userID)
	}
	if query.Dataset != "" {
		datasetID, err := uuid.Parse(query.Dataset)
		if err != nil {
			return nil, Validation("Invalid dataset id", err)
		}
		tx = tx.Where("dataset_id = ?", datasetID)
	}
	if query.Title != "" {
		tx = tx.Where("title = ?", query.Title)
	}

	dashboards := []entity.Dashboard{}
	if err := tx.Find(&dashboards).Error; err != nil {
		return nil, Upstream("Failed to list dashboards", err)
	}
	return dashboards, nil
}

// Get returns a dashboard with its owner, dataset summary and widgets.
func (s *DashboardService) Get(ctx context.Context, caller Caller, id uuid.UUID) (*entity.Dashboard, error) {
	var dashboard entity.Dashboard
	err := s.db.WithContext(ctx).
		Preload("Owner", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "email")
		}).
		Preload("Dataset", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "title", "last_updated", "file_type")
		}).
		Preload("Widgets", func(db *gorm.DB) *gorm.DB {
			return db.Order(widgetOrder)
		}).
		First(&dashboard, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Dashboard not found")
		}
		return nil, Upstream("Failed to get dashboard", err)
	}

	if !caller.Agent && !utils.UserCanViewDashboard(caller.UserID, &dashboard) {
		return nil, Forbidden("You are not authorized to access this dashboard")
	}
	return &dashboard, nil
}

func (s *DashboardService) Create(ctx context.Context, caller Caller, input DashboardInput) (*entity.Dashboard, error) {
	dashboard := &entity.Dashboard{UserID: caller.UserID}
	if err := s.apply(ctx, caller, dashboard, input); err != nil {
		return nil, err
	}
	if dashboard.DatasetID == uuid.Nil {
		return nil, Validation("A dashboard needs a dataset", nil)
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(dashboard).Error; err != nil {
		return nil, Upstream("Failed to create dashboard", err)
	}

	s.index(ctx, dashboard)
	return dashboard, nil
}

// Update changes the dashboard record itself; widgets have their own
// endpoints.
func (s *DashboardService) Update(ctx context.Context, caller Caller, id uuid.UUID, input DashboardInput) (*entity.Dashboard, error) {
	dashboard, err := s.findOwned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if err := s.apply(ctx, caller, dashboard, input); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(dashboard).Error; err != nil {
		return nil, Upstream("Failed to update dashboard", err)
	}

	s.index(ctx, dashboard)
	return dashboard, nil
}

// Delete removes the dashboard together with its widgets and graph groups.
func (s *DashboardService) Delete(ctx context.Context, caller Caller, id uuid.UUID) (*entity.Dashboard, error) {
	dashboard, err := s.findOwned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dashboard_id = ?", dashboard.ID).Delete(&entity.Widget{}).Error; err != nil {
			return err
		}
		if err := tx.Where("dashboard_id = ?", dashboard.ID).Delete(&entity.GraphGroup{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.Dashboard{}, "id = ?", dashboard.ID).Error
	})
	if err != nil {
		return nil, Upstream("Failed to delete dashboard", err)
	}

	if err := s.indexer.Remove(ctx, dashboard.ID); err != nil {
		s.logger.Warn("Failed to remove dashboard from search index", zap.String("dashboard_id", dashboard.ID.String()), zap.Error(err))
	}
	return dashboard, nil
}

// Widgets lists the widgets of a dashboard the caller can see.
func (s *DashboardService) Widgets(ctx context.Context, caller Caller, id uuid.UUID) ([]entity.Widget, error) {
	dashboard, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Agent && !utils.UserCanViewDashboard(caller.UserID, dashboard) {
		return nil, Forbidden("You are not authorized to access this dashboard")
	}

	widgets := []entity.Widget{}
	if err := s.db.WithContext(ctx).Where("dashboard_id = ?", id).Order(widgetOrder).Find(&widgets).Error; err != nil {
		return nil, Upstream("Failed to list widgets", err)
	}
	return widgets, nil
}

// CloneTemplate creates a dashboard for dataset from a template dashboard.
// The copy takes its metadata from the dataset and gets fresh ids for
// itself and every widget. Nothing is written unless every row is.
func (s *DashboardService) CloneTemplate(ctx context.Context, templateID uuid.UUID, dataset *entity.Dataset) (*entity.Dashboard, error) {
	template, err := s.find(ctx, templateID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NotFound("No matching template found")
		}
		return nil, err
	}
	if !utils.UserCanViewDashboard(dataset.UserID, template) {
		return nil, Forbidden("You are not authorized to use this template")
	}

	var (
		widgets []entity.Widget
		groups  []entity.GraphGroup
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("dashboard_id = ?", templateID).Find(&widgets).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("dashboard_id = ?", templateID).Find(&groups).Error
	})
	if err := g.Wait(); err != nil {
		return nil, Upstream("Failed to load template", err)
	}

	dashboard := &entity.Dashboard{
		ID:                  uuid.New(),
		UserID:              dataset.UserID,
		Title:               dataset.Title,
		ShortDescription:    dataset.ShortDescription,
		DatasetID:           dataset.ID,
		IsPublic:            dataset.IsPublic,
		Screenshot:          entity.DefaultScreenshot,
		Tags:                append(datatypes.JSONSlice[string]{}, template.Tags...),
		OriginalDashboardID: &template.ID,
	}

	for i := range widgets {
		widgets[i].ID = uuid.New()
		widgets[i].DashboardID = dashboard.ID
		widgets[i].LastUpdated = time.Time{}
	}
	for i := range groups {
		groups[i].ID = uuid.New()
		groups[i].DashboardID = dashboard.ID
		groups[i].CreatedAt = time.Time{}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(dashboard).Error; err != nil {
			return err
		}
		if len(widgets) > 0 {
			if err := tx.Create(&widgets).Error; err != nil {
				return err
			}
		}
		if len(groups) > 0 {
			if err := tx.Create(&groups).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, Upstream("Failed to clone template dashboard", err)
	}

	dashboard.Widgets = widgets
	s.index(ctx, dashboard)
	return dashboard, nil
}

// Share e-mails a link to the dashboard.
func (s *DashboardService) Share(ctx context.Context, caller Caller, id uuid.UUID, email string) error {
	if email == "" {
		return Validation("An e-mail address is required", nil)
	}

	dashboard, err := s.findOwned(ctx, caller, id)
	if err != nil {
		return err
	}

	var owner entity.User
	if err := s.db.WithContext(ctx).First(&owner, "id = ?", caller.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFound("User not found")
		}
		return Upstream("Failed to get user", err)
	}

	return s.mailer.SendDashboardShare(ctx, email, owner.Name, dashboard.Title, s.ShareLink(dashboard))
}

func (s *DashboardService) ShareLink(dashboard *entity.Dashboard) string {
	return fmt.Sprintf("%s/%s/datasets/%s/dashboards/%s", s.appURL, dashboard.UserID, dashboard.DatasetID, dashboard.ID)
}

func (s *DashboardService) find(ctx context.Context, id uuid.UUID) (*entity.Dashboard, error) {
	var dashboard entity.Dashboard
	if err := s.db.WithContext(ctx).First(&dashboard, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Dashboard not found")
		}
		return nil, Upstream("Failed to get dashboard", err)
	}
	return &dashboard, nil
}

func (s *DashboardService) findOwned(ctx context.Context, caller Caller, id uuid.UUID) (*entity.Dashboard, error) {
	dashboard, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !utils.UserOwnsDashboard(caller.UserID, dashboard) {
		return nil, Forbidden("You are not authorized to access this dashboard")
	}
	return dashboard, nil
}

func (s *DashboardService) apply(ctx context.Context, caller Caller, dashboard *entity.Dashboard, input DashboardInput) error {
	if input.Title != nil {
		dashboard.Title = strings.TrimSpace(*input.Title)
	}
	if dashboard.Title == "" {
		return Validation("A dashboard needs a title", nil)
	}
	if input.ShortDescription != nil {
		dashboard.ShortDescription = *input.ShortDescription
	}
	if input.IsPublic != nil {
		dashboard.IsPublic = *input.IsPublic
	}
	if input.Screenshot != nil {
		dashboard.Screenshot = *input.Screenshot
	}
	if input.Tags != nil {
		dashboard.Tags = datatypes.JSONSlice[string](*input.Tags)
	}

	if input.DatasetID != nil {
		datasetID, err := uuid.Parse(*input.DatasetID)
		if err != nil {
			return Validation("Invalid dataset id", err)
		}

		var dataset entity.Dataset
		if err := s.db.WithContext(ctx).First(&dataset, "id = ?", datasetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("Dataset not found")
			}
			return Upstream("Failed to get dataset", err)
		}
		if !utils.UserCanViewDataset(caller.UserID, &dataset) {
			return Forbidden("You are not authorized to access this dataset")
		}
		dashboard.DatasetID = dataset.ID
	}
	return nil
}

func (s *DashboardService) index(ctx context.Context, dashboard *entity.Dashboard) {
	if err := s.indexer.IndexDashboard(ctx, dashboard); err != nil {
		s.logger.Warn("Failed to index dashboard", zap.String("dashboard_id", dashboard.ID.String()), zap.Error(err))
	}
}
