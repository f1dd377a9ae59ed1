package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChartObject is the client-side chart configuration of a widget. Axis
// bindings name dataset columns. ChartOptions carries the chart library's
// settings as given.
type ChartObject struct {
	ID            string         `json:"id,omitempty"`
	ChartType     string         `json:"chartType,omitempty"`
	ChartGroup    string         `json:"chartGroup,omitempty"`
	XAxis         any            `json:"xAxis,omitempty"`
	YAxis         any            `json:"yAxis,omitempty"`
	GroupType     string         `json:"groupType,omitempty"`
	ColorSettings map[string]any `json:"colorSettings,omitempty"`
	ChartOptions  map[string]any `json:"chartOptions,omitempty"`
}

type Widget struct {
	ID          uuid.UUID                       `json:"id" gorm:"type:uuid;primaryKey"`
	DashboardID uuid.UUID                       `json:"dashboard" gorm:"type:uuid;not null;index"`
	Title       string                          `json:"title" gorm:"type:varchar(255)"`
	Type        string                          `json:"type" gorm:"type:varchar(50)"`
	ChartObject datatypes.JSONType[ChartObject] `json:"chartObject"`
	Col         int                             `json:"col"`
	Row         int                             `json:"row"`
	SizeX       int                             `json:"sizeX"`
	SizeY       int                             `json:"sizeY"`
	LastUpdated time.Time                       `json:"lastUpdated" gorm:"autoUpdateTime"`
}

func (w *Widget) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// GraphGroup is a named chart group of a dashboard; charts in the same
// group are cross-filtered together by the client.
type GraphGroup struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	DashboardID uuid.UUID `json:"dashboard" gorm:"type:uuid;not null;uniqueIndex:idx_graph_group_dashboard_name"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null;uniqueIndex:idx_graph_group_dashboard_name"`
	Position    int       `json:"position" gorm:"not null"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (g *GraphGroup) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
