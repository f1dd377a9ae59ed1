package utils

import (
	"strings"

	"github.com/google/uuid"
	"github.com/kerem-kaynak/dashjs/internal/entity"
)

// PhantomUserAgent marks the headless screenshot renderer.
const PhantomUserAgent = "PhantomJS"

// SameUser compares ids the way ownership is recorded: as strings. An
// anonymous caller never matches.
func SameUser(ownerID, callerID uuid.UUID) bool {
	if callerID == uuid.Nil {
		return false
	}
	return ownerID.String() == callerID.String()
}

func IsPhantomUserAgent(userAgent string) bool {
	return strings.Contains(userAgent, PhantomUserAgent)
}

func UserOwnsDataset(userID uuid.UUID, dataset *entity.Dataset) bool {
	return SameUser(dataset.UserID, userID)
}

func UserCanViewDataset(userID uuid.UUID, dataset *entity.Dataset) bool {
	return dataset.IsPublic || UserOwnsDataset(userID, dataset)
}

func UserOwnsDashboard(userID uuid.UUID, dashboard *entity.Dashboard) bool {
	return SameUser(dashboard.UserID, userID)
}

func UserCanViewDashboard(userID uuid.UUID, dashboard *entity.Dashboard) bool {
	return dashboard.IsPublic || UserOwnsDashboard(userID, dashboard)
}
