package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kerem-kaynak/dashjs/internal/entity"
	"github.com/kerem-kaynak/dashjs/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultGraphGroup is reported for dashboards that have no groups yet.
const DefaultGraphGroup = "Group1"

type WidgetInput struct {
	DashboardID *string             `json:"dashboard"`
	Title       *string             `json:"title"`
	Type        *string             `json:"type"`
	ChartObject *entity.ChartObject `json:"chartObject"`
	Col         *int                `json:"col"`
	Row         *int                `json:"row"`
	SizeX       *int                `json:"sizeX"`
	SizeY       *int                `json:"sizeY"`
}

type WidgetService struct {
	db *gorm.DB
}

func NewWidgetService(db *gorm.DB) *WidgetService {
	return &WidgetService{db: db}
}

func (s *WidgetService) Create(ctx context.Context, caller Caller, input WidgetInput) (*entity.Widget, error) {
	if input.DashboardID == nil {
		return nil, Validation("A widget needs a dashboard", nil)
	}
	dashboardID, err := uuid.Parse(*input.DashboardID)
	if err != nil {
		return nil, Validation("Invalid dashboard id", err)
	}

	dashboard, err := s.ownedDashboard(ctx, caller, dashboardID)
	if err != nil {
		return nil, err
	}

	widget := &entity.Widget{DashboardID: dashboard.ID}
	applyWidget(widget, input)

	if err := s.db.WithContext(ctx).Create(widget).Error; err != nil {
		return nil, Upstream("Failed to create widget", err)
	}
	return widget, nil
}

func (s *WidgetService) Get(ctx context.Context, caller Caller, id uuid.UUID) (*entity.Widget, error) {
	widget, dashboard, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Agent && !utils.UserCanViewDashboard(caller.UserID, dashboard) {
		return nil, Forbidden("You are not authorized to access this widget")
	}
	return widget, nil
}

// Update rewrites the supplied fields. A widget cannot be moved to another
// dashboard.
func (s *WidgetService) Update(ctx context.Context, caller Caller, id uuid.UUID, input WidgetInput) (*entity.Widget, error) {
	widget, dashboard, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !utils.UserOwnsDashboard(caller.UserID, dashboard) {
		return nil, Forbidden("You are not authorized to access this widget")
	}

	applyWidget(widget, input)
	if err := s.db.WithContext(ctx).Save(widget).Error; err != nil {
		return nil, Upstream("Failed to update widget", err)
	}
	return widget, nil
}

func (s *WidgetService) Delete(ctx context.Context, caller Caller, id uuid.UUID) (*entity.Widget, error) {
	widget, dashboard, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !utils.UserOwnsDashboard(caller.UserID, dashboard) {
		return nil, Forbidden("You are not authorized to access this widget")
	}

	if err := s.db.WithContext(ctx).Delete(&entity.Widget{}, "id = ?", widget.ID).Error; err != nil {
		return nil, Upstream("Failed to delete widget", err)
	}
	return widget, nil
}

// GraphGroups returns the group names of a dashboard in the order they
// were added.
func (s *WidgetService) GraphGroups(ctx context.Context, caller Caller, dashboardID uuid.UUID) ([]string, error) {
	dashboard, err := s.dashboard(ctx, dashboardID)
	if err != nil {
		return nil, err
	}
	if !caller.Agent && !utils.UserCanViewDashboard(caller.UserID, dashboard) {
		return nil, Forbidden("You are not authorized to access this dashboard")
	}

	names, err := s.groupNames(ctx, s.db, dashboard.ID)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []string{DefaultGraphGroup}, nil
	}
	return names, nil
}

// AddGraphGroup adds a named group to a dashboard. An empty name picks the
// next free "GroupN". Adding an existing name is a no-op.
func (s *WidgetService) AddGraphGroup(ctx context.Context, caller Caller, dashboardID uuid.UUID, name string) ([]string, error) {
	dashboard, err := s.ownedDashboard(ctx, caller, dashboardID)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	var names []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.groupNames(ctx, tx, dashboard.ID)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			existing = []string{DefaultGraphGroup}
			if err := tx.Create(&entity.GraphGroup{DashboardID: dashboard.ID, Name: DefaultGraphGroup, Position: 1}).Error; err != nil {
				return err
			}
		}

		if name == "" {
			name = nextGroupName(existing)
		}
		names = existing
		for _, n := range existing {
			if n == name {
				return nil
			}
		}

		group := &entity.GraphGroup{DashboardID: dashboard.ID, Name: name, Position: len(existing) + 1}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(group).Error; err != nil {
			return err
		}
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, Upstream("Failed to add graph group", err)
	}
	return names, nil
}

func (s *WidgetService) groupNames(ctx context.Context, db *gorm.DB, dashboardID uuid.UUID) ([]string, error) {
	var names []string
	err := db.WithContext(ctx).Model(&entity.GraphGroup{}).
		Where("dashboard_id = ?", dashboardID).
		Order("position ASC").
		Pluck("name", &names).Error
	if err != nil {
		return nil, Upstream("Failed to list graph groups", err)
	}
	return names, nil
}

func (s *WidgetService) find(ctx context.Context, id uuid.UUID) (*entity.Widget, *entity.Dashboard, error) {
	var widget entity.Widget
	if err := s.db.WithContext(ctx).First(&widget, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, NotFound("Widget not found")
		}
		return nil, nil, Upstream("Failed to get widget", err)
	}

	dashboard, err := s.dashboard(ctx, widget.DashboardID)
	if err != nil {
		return nil, nil, err
	}
	return &widget, dashboard, nil
}

func (s *WidgetService) dashboard(ctx context.Context, id uuid.UUID) (*entity.Dashboard, error) {
	var dashboard entity.Dashboard
	if err := s.db.WithContext(ctx).First(&dashboard, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Dashboard not found")
		}
		return nil, Upstream("Failed to get dashboard", err)
	}
	return &dashboard, nil
}

func (s *WidgetService) ownedDashboard(ctx context.Context, caller Caller, id uuid.UUID) (*entity.Dashboard, error) {
	dashboard, err := s.dashboard(ctx, id)
	if err != nil {
		return nil, err
	}
	if !utils.UserOwnsDashboard(caller.UserID, dashboard) {
		return nil, Forbidden("You are not authorized to access this dashboard")
	}
	return dashboard, nil
}

func applyWidget(widget *entity.Widget, input WidgetInput) {
	if input.Title != nil {
		widget.Title = *input.Title
	}
	if input.Type != nil {
		widget.Type = *input.Type
	}
	if input.ChartObject != nil {
		widget.ChartObject = datatypes.NewJSONType(*input.ChartObject)
	}
	if input.Col != nil {
		widget.Col = *input.Col
	}
	if input.Row != nil {
		widget.Row = *input.Row
	}
	if input.SizeX != nil {
		widget.SizeX = *input.SizeX
	}
	if input.SizeY != nil {
		widget.SizeY = *input.SizeY
	}
}

func nextGroupName(existing []string) string {
	taken := make(map[string]bool, len(existing))
	for _, n := range existing {
		taken[n] = true
	}
	for i := len(existing) + 1; ; i++ {
		name := fmt.Sprintf("Group%d", i)
		if !taken[name] {
			return name
		}
	}
}
