package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kerem-kaynak/dashjs/internal/entity"
	"github.com/kerem-kaynak/dashjs/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MIMETypeCSV  = "text/csv"
	MIMETypeJSON = "application/json"
)

// Caller is the authenticated party of a request. UserID is uuid.Nil for
// anonymous callers. Agent is the screenshot renderer proven by the
// phantom secret; Renderer only claims to be it through its user-agent
// and is trusted for dataset reads alone.
type Caller struct {
	UserID   uuid.UUID
	Agent    bool
	Renderer bool
}

type DatasetWithData struct {
	entity.Dataset
	JSONData []map[string]any `json:"jsonData"`
}

type CreateDatasetResult struct {
	DatasetWithData
	DashboardID *uuid.UUID `json:"dashboardId,omitempty"`
}

type DatasetQuery struct {
	User  string
	Title string
}

// DatasetInput carries metadata and raw content. Nil metadata fields are
// left untouched on replace.
type DatasetInput struct {
	Title             *string
	ShortDescription  *string
	IsPublic          *bool
	TemplateDashboard string
	Content           []byte
	MIMEType          string
}

type EntriesResult struct {
	utils.UpsertResult
	Success bool `json:"success"`
}

type DeleteEntriesResult struct {
	utils.DeleteResult
	Success bool `json:"success"`
}

type DatasetService struct {
	db         *gorm.DB
	store      ObjectStore
	locker     Locker
	indexer    Indexer
	dashboards *DashboardService
	uploadDir  string
	logger     *zap.Logger
}

func NewDatasetService(db *gorm.DB, store ObjectStore, locker Locker, indexer Indexer, dashboards *DashboardService, uploadDir string, logger *zap.Logger) *DatasetService {
	return &DatasetService{
		db:         db,
		store:      store,
		locker:     locker,
		indexer:    indexer,
		dashboards: dashboards,
		uploadDir:  uploadDir,
		logger:     logger,
	}
}

// List returns public datasets, or every dataset of the queried user when
// that user is the caller.
func (s *DatasetService) List(ctx context.Context, caller Caller, query DatasetQuery) ([]entity.Dataset, error) {
	tx := s.db.WithContext(ctx).Order("last_updated DESC")

	if query.User != "" {
		userID, err := uuid.Parse(query.User)
		if err != nil {
			return nil, Validation("Invalid user id", err)
		}
		tx = tx.Where("user_id = ?", userID)
		if !utils.SameUser(userID, caller.UserID) {
			tx = tx.Where("is_public = ?", true)
		}
	} else {
		tx = tx.Where("is_public = ?", true)
	}

	if query.Title != "" {
		tx = tx.Where("title = ?", query.Title)
	}

	datasets := []entity.Dataset{}
	if err := tx.Find(&datasets).Error; err != nil {
		return nil, Upstream("Failed to list datasets", err)
	}
	return datasets, nil
}

// ListOwned returns every dataset of the caller.
func (s *DatasetService) ListOwned(ctx context.Context, caller Caller) ([]entity.Dataset, error) {
	datasets := []entity.Dataset{}
	if err := s.db.WithContext(ctx).Where("user_id = ?", caller.UserID).Order("last_updated DESC").Find(&datasets).Error; err != nil {
		return nil, Upstream("Failed to list datasets", err)
	}
	return datasets, nil
}

func (s *DatasetService) Get(ctx context.Context, caller Caller, id uuid.UUID) (*DatasetWithData, error) {
	dataset, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !caller.Agent && !caller.Renderer && !utils.UserCanViewDataset(caller.UserID, dataset) {
		return nil, Forbidden("You are not authorized to access this dataset")
	}

	unlock, err := s.locker.Lock(ctx, dataset.ID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	records, err := s.readContent(ctx, dataset)
	if err != nil {
		return nil, err
	}
	return &DatasetWithData{Dataset: *dataset, JSONData: records}, nil
}

// Create persists a new dataset and its content. When a template dashboard
// is given, a dashboard cloned from it is bound to the new dataset; if that
// fails the dataset is rolled back.
func (s *DatasetService) Create(ctx context.Context, caller Caller, input DatasetInput) (*CreateDatasetResult, error) {
	records, err := normalizeContent(input.Content, input.MIMEType)
	if err != nil {
		return nil, err
	}

	var templateID uuid.UUID
	if input.TemplateDashboard != "" {
		if templateID, err = uuid.Parse(input.TemplateDashboard); err != nil {
			return nil, Validation("Invalid template dashboard id", err)
		}
	}

	dataset := &entity.Dataset{
		ID:       uuid.New(),
		UserID:   caller.UserID,
		FileType: entity.DatasetFileType,
	}
	applyMetadata(dataset, input)
	if dataset.Title == "" {
		return nil, Validation("A dataset needs a title", nil)
	}

	unlock, err := s.locker.Lock(ctx, dataset.ID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.db.WithContext(ctx).Create(dataset).Error; err != nil {
		return nil, Upstream("Failed to store dataset", err)
	}

	if err := s.writeContent(ctx, dataset, records, false); err != nil {
		s.rollback(dataset)
		return nil, err
	}

	result := &CreateDatasetResult{DatasetWithData: DatasetWithData{Dataset: *dataset, JSONData: records}}

	if templateID != uuid.Nil {
		dashboard, err := s.dashboards.CloneTemplate(ctx, templateID, dataset)
		if err != nil {
			s.rollback(dataset)
			return nil, err
		}
		result.DashboardID = &dashboard.ID
	}

	s.index(ctx, dataset)
	return result, nil
}

// Replace swaps a dataset's content and metadata for newly uploaded ones.
func (s *DatasetService) Replace(ctx context.Context, caller Caller, id uuid.UUID, input DatasetInput) (*DatasetWithData, error) {
	records, err := normalizeContent(input.Content, input.MIMEType)
	if err != nil {
		return nil, err
	}

	dataset, err := s.findOwned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, dataset.ID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	applyMetadata(dataset, input)
	dataset.FileType = entity.DatasetFileType
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(dataset).Error; err != nil {
		return nil, Upstream("Failed to update dataset", err)
	}

	if err := s.writeContent(ctx, dataset, records, true); err != nil {
		return nil, err
	}

	s.index(ctx, dataset)
	return &DatasetWithData{Dataset: *dataset, JSONData: records}, nil
}

// EntriesInput is a batch of rows plus optional metadata changes applied
// in the same write.
type EntriesInput struct {
	Title            *string
	ShortDescription *string
	IsPublic         *bool
	Data             []map[string]any
}

func (in EntriesInput) metadata() DatasetInput {
	return DatasetInput{Title: in.Title, ShortDescription: in.ShortDescription, IsPublic: in.IsPublic}
}

// PatchEntries upserts rows by id or _id.
func (s *DatasetService) PatchEntries(ctx context.Context, caller Caller, id uuid.UUID, input EntriesInput) (*EntriesResult, error) {
	if input.Data == nil {
		return nil, Validation("you must specify entries to add or update as {data:[{id:1,...},{_id:2,...},...]}", nil)
	}

	result := &EntriesResult{}
	err := s.mutateContent(ctx, caller, id, input.metadata(), func(data []map[string]any) []map[string]any {
		var counts utils.UpsertResult
		data, counts = utils.UpsertEntries(data, input.Data)
		result.UpsertResult = counts
		return data
	})
	if err != nil {
		return nil, err
	}
	result.Success = true
	return result, nil
}

// DeleteEntries removes rows by id or _id.
func (s *DatasetService) DeleteEntries(ctx context.Context, caller Caller, id uuid.UUID, input EntriesInput) (*DeleteEntriesResult, error) {
	if input.Data == nil {
		return nil, Validation("you must specify id's of entries to delete as {data:[{id:1},{_id:2},...]}", nil)
	}

	result := &DeleteEntriesResult{}
	err := s.mutateContent(ctx, caller, id, input.metadata(), func(data []map[string]any) []map[string]any {
		var counts utils.DeleteResult
		data, counts = utils.DeleteEntries(data, input.Data)
		result.DeleteResult = counts
		return data
	})
	if err != nil {
		return nil, err
	}
	result.Success = true
	return result, nil
}

func (s *DatasetService) mutateContent(ctx context.Context, caller Caller, id uuid.UUID, meta DatasetInput, mutate func([]map[string]any) []map[string]any) error {
	if meta.Title != nil && *meta.Title == "" {
		return Validation("A dataset needs a title", nil)
	}

	dataset, err := s.findOwned(ctx, caller, id)
	if err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, dataset.ID.String())
	if err != nil {
		return err
	}
	defer unlock()

	data, err := s.readContent(ctx, dataset)
	if err != nil {
		return err
	}

	data = mutate(data)
	utils.SanitizeRecords(data)

	path := s.localPath(dataset)
	if err := writeRecords(path, data); err != nil {
		return err
	}

	applyMetadata(dataset, meta)
	dataset.LastUpdated = time.Now()
	err = s.db.WithContext(ctx).Model(dataset).
		Select("title", "short_description", "is_public", "last_updated").
		Updates(dataset).Error
	if err != nil {
		return Upstream("Failed to update dataset", err)
	}

	if err := s.store.Upload(ctx, path, s.key(dataset)); err != nil {
		return err
	}

	s.index(ctx, dataset)
	return nil
}

// Delete removes the dataset record and its content. Dashboards built on
// the dataset are left in place.
func (s *DatasetService) Delete(ctx context.Context, caller Caller, id uuid.UUID) (*entity.Dataset, error) {
	dataset, err := s.findOwned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, dataset.ID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.db.WithContext(ctx).Delete(&entity.Dataset{}, "id = ?", dataset.ID).Error; err != nil {
		return nil, Upstream("Failed to delete dataset", err)
	}

	if err := s.store.Delete(ctx, s.key(dataset)); err != nil {
		return nil, err
	}
	s.removeLocal(dataset)

	if err := s.indexer.Remove(ctx, dataset.ID); err != nil {
		s.logger.Warn("Failed to remove dataset from search index", zap.String("dataset_id", dataset.ID.String()), zap.Error(err))
	}
	return dataset, nil
}

// Fork copies a public dataset, metadata and content, to the caller.
func (s *DatasetService) Fork(ctx context.Context, caller Caller, id uuid.UUID) (*DatasetWithData, error) {
	source, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !source.IsPublic {
		return nil, Forbidden("You are not authorized to access this dataset")
	}

	unlockSource, err := s.locker.Lock(ctx, source.ID.String())
	if err != nil {
		return nil, err
	}
	defer unlockSource()

	records, err := s.readContent(ctx, source)
	if err != nil {
		return nil, err
	}

	fork := &entity.Dataset{
		ID:                uuid.New(),
		UserID:            caller.UserID,
		Title:             source.Title,
		ShortDescription:  source.ShortDescription,
		IsPublic:          source.IsPublic,
		FileType:          source.FileType,
		OriginalDatasetID: &source.ID,
	}

	if err := s.db.WithContext(ctx).Create(fork).Error; err != nil {
		return nil, Upstream("Failed to store forked dataset", err)
	}

	if err := s.writeContent(ctx, fork, records, false); err != nil {
		s.rollback(fork)
		return nil, err
	}

	s.index(ctx, fork)
	return &DatasetWithData{Dataset: *fork, JSONData: records}, nil
}

func (s *DatasetService) find(ctx context.Context, id uuid.UUID) (*entity.Dataset, error) {
	var dataset entity.Dataset
	if err := s.db.WithContext(ctx).First(&dataset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Dataset not found")
		}
		return nil, Upstream("Failed to get dataset", err)
	}
	return &dataset, nil
}

func (s *DatasetService) findOwned(ctx context.Context, caller Caller, id uuid.UUID) (*entity.Dataset, error) {
	dataset, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !utils.UserOwnsDataset(caller.UserID, dataset) {
		return nil, Forbidden("You are not authorized to access this dataset")
	}
	return dataset, nil
}

func (s *DatasetService) localPath(dataset *entity.Dataset) string {
	return utils.DatasetFilePath(s.uploadDir, dataset.UserID, dataset.ID)
}

func (s *DatasetService) key(dataset *entity.Dataset) string {
	return utils.DatasetFileName(dataset.UserID, dataset.ID)
}

// readContent pulls the remote copy into the staging file, then reads it.
func (s *DatasetService) readContent(ctx context.Context, dataset *entity.Dataset) ([]map[string]any, error) {
	path := s.localPath(dataset)
	if err := s.store.Download(ctx, s.key(dataset), path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, Upstream("Failed to read dataset file", err)
	}

	records := []map[string]any{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, Upstream("Dataset file is corrupt", err)
	}
	return records, nil
}

// writeContent writes the staging file, then syncs it to the store. With
// replace set, the old remote object is deleted before the upload.
func (s *DatasetService) writeContent(ctx context.Context, dataset *entity.Dataset, records []map[string]any, replace bool) error {
	path := s.localPath(dataset)
	if err := writeRecords(path, records); err != nil {
		return err
	}

	if replace {
		if err := s.store.Delete(ctx, s.key(dataset)); err != nil {
			return err
		}
	}
	return s.store.Upload(ctx, path, s.key(dataset))
}

// rollback undoes a partially created dataset. It runs detached from the
// request context so a cancelled request still cleans up.
func (s *DatasetService) rollback(dataset *entity.Dataset) {
	ctx := context.Background()
	if err := s.store.Delete(ctx, s.key(dataset)); err != nil {
		s.logger.Error("Failed to roll back dataset file", zap.String("dataset_id", dataset.ID.String()), zap.Error(err))
	}
	s.removeLocal(dataset)
	if err := s.db.WithContext(ctx).Delete(&entity.Dataset{}, "id = ?", dataset.ID).Error; err != nil {
		s.logger.Error("Failed to roll back dataset record", zap.String("dataset_id", dataset.ID.String()), zap.Error(err))
	}
}

func (s *DatasetService) removeLocal(dataset *entity.Dataset) {
	if err := os.Remove(s.localPath(dataset)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove local dataset file", zap.String("dataset_id", dataset.ID.String()), zap.Error(err))
	}
}

func (s *DatasetService) index(ctx context.Context, dataset *entity.Dataset) {
	if err := s.indexer.IndexDataset(ctx, dataset); err != nil {
		s.logger.Warn("Failed to index dataset", zap.String("dataset_id", dataset.ID.String()), zap.Error(err))
	}
}

func applyMetadata(dataset *entity.Dataset, input DatasetInput) {
	if input.Title != nil {
		dataset.Title = *input.Title
	}
	if input.ShortDescription != nil {
		dataset.ShortDescription = *input.ShortDescription
	}
	if input.IsPublic != nil {
		dataset.IsPublic = *input.IsPublic
	}
}

func normalizeContent(content []byte, mimeType string) ([]map[string]any, error) {
	var records []map[string]any
	switch mimeType {
	case MIMETypeCSV:
		records = utils.ConvertCSVToRecords(string(content))
	case MIMETypeJSON:
		var err error
		records, err = utils.FlattenRecords(content)
		if err != nil {
			return nil, Validation("The uploaded JSON is not a table: "+err.Error(), err)
		}
	default:
		return nil, Validation("This is not valid file type. Upload either .csv or .json", nil)
	}

	utils.SanitizeRecords(records)
	return records, nil
}

func writeRecords(path string, records []map[string]any) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return Upstream("Failed to encode dataset", err)
	}
	return writeLocal(path, bytes.NewReader(raw))
}
