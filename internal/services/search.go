package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/kerem-kaynak/dashjs/internal/entity"
	"github.com/kerem-kaynak/dashjs/internal/utils"
	"github.com/meilisearch/meilisearch-go"
)

const SearchIndex = "resources"

// Indexer keeps dataset and dashboard metadata searchable. Content rows
// are never indexed.
type Indexer interface {
	IndexDataset(ctx context.Context, dataset *entity.Dataset) error
	IndexDashboard(ctx context.Context, dashboard *entity.Dashboard) error
	Remove(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string, callerID uuid.UUID) ([]interface{}, error)
}

type MeilisearchIndexer struct {
	client *meilisearch.Client
}

func NewMeilisearchIndexer(client *meilisearch.Client) *MeilisearchIndexer {
	return &MeilisearchIndexer{client: client}
}

func (m *MeilisearchIndexer) IndexDataset(ctx context.Context, dataset *entity.Dataset) error {
	return m.add(utils.DatasetToDocument(dataset))
}

func (m *MeilisearchIndexer) IndexDashboard(ctx context.Context, dashboard *entity.Dashboard) error {
	return m.add(utils.DashboardToDocument(dashboard))
}

func (m *MeilisearchIndexer) add(document map[string]interface{}) error {
	_, err := m.client.Index(SearchIndex).AddDocuments([]map[string]interface{}{document})
	if err != nil {
		return Upstream("Failed to index document", err)
	}
	return nil
}

func (m *MeilisearchIndexer) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := m.client.Index(SearchIndex).DeleteDocument(id.String())
	if err != nil {
		return Upstream("Failed to remove document", err)
	}
	return nil
}

func (m *MeilisearchIndexer) Search(ctx context.Context, query string, callerID uuid.UUID) ([]interface{}, error) {
	actualQuery, filter := utils.SearchFilter(query, callerID)

	searchResult, err := m.client.Index(SearchIndex).Search(actualQuery, &meilisearch.SearchRequest{
		Query:  actualQuery,
		Filter: filter,
	})
	if err != nil {
		return nil, Upstream("Failed to perform search", err)
	}
	return searchResult.Hits, nil
}

// NopIndexer is used when no search backend is configured.
type NopIndexer struct{}

func (NopIndexer) IndexDataset(context.Context, *entity.Dataset) error     { return nil }
func (NopIndexer) IndexDashboard(context.Context, *entity.Dashboard) error { return nil }
func (NopIndexer) Remove(context.Context, uuid.UUID) error                 { return nil }

func (NopIndexer) Search(context.Context, string, uuid.UUID) ([]interface{}, error) {
	return []interface{}{}, nil
}
