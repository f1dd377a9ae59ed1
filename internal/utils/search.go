package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kerem-kaynak/dashjs/internal/entity"
)

func DatasetToDocument(dataset *entity.Dataset) map[string]interface{} {
	return map[string]interface{}{
		"id":          dataset.ID.String(),
		"type":        "dataset",
		"title":       dataset.Title,
		"description": dataset.ShortDescription,
		"user_id":     dataset.UserID.String(),
		"is_public":   dataset.IsPublic,
	}
}

func DashboardToDocument(dashboard *entity.Dashboard) map[string]interface{} {
	return map[string]interface{}{
		"id":          dashboard.ID.String(),
		"type":        "dashboard",
		"title":       dashboard.Title,
		"description": dashboard.ShortDescription,
		"tags":        []string(dashboard.Tags),
		"user_id":     dashboard.UserID.String(),
		"is_public":   dashboard.IsPublic,
		"dataset_id":  dashboard.DatasetID.String(),
	}
}

// SearchFilter splits an optional "ds:" or "db:" prefix off the query and
// builds a filter limited to documents the caller may see.
func SearchFilter(query string, callerID uuid.UUID) (string, string) {
	var typeFilter string
	var actualQuery string

	switch {
	case strings.HasPrefix(query, "ds:"):
		typeFilter = "type = dataset"
		actualQuery = strings.TrimPrefix(query, "ds:")
	case strings.HasPrefix(query, "db:"):
		typeFilter = "type = dashboard"
		actualQuery = strings.TrimPrefix(query, "db:")
	default:
		typeFilter = "type IN [dataset, dashboard]"
		actualQuery = query
	}

	visibility := "is_public = true"
	if callerID != uuid.Nil {
		visibility = fmt.Sprintf("(is_public = true OR user_id = %q)", callerID.String())
	}

	return strings.TrimSpace(actualQuery), fmt.Sprintf("%s AND %s", visibility, typeFilter)
}
