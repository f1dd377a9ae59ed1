package appcontext

import (
	"time"

	"github.com/kerem-kaynak/dashjs/internal/services"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type Context struct {
	DB     *gorm.DB
	Logger *zap.Logger

	OAuth2Config  *oauth2.Config
	SessionSecret []byte
	SessionTTL    time.Duration
	TokenSecret   []byte
	PhantomSecret string

	AppURL         string
	Environment    string
	AllowedOrigins []string
	TokenRateLimit float64
	TokenRateBurst int

	Datasets   *services.DatasetService
	Dashboards *services.DashboardService
	Widgets    *services.WidgetService
	Search     services.Indexer
}

func (c *Context) IsProduction() bool {
	return c.Environment == "production"
}
