package utils

import (
	"path/filepath"

	"github.com/google/uuid"
)

// DatasetFileName is both the local file name and the remote object key of
// a dataset's content.
func DatasetFileName(userID, datasetID uuid.UUID) string {
	return "user:" + userID.String() + "-dataset:" + datasetID.String() + ".json"
}

func DatasetFilePath(uploadDir string, userID, datasetID uuid.UUID) string {
	return filepath.Join(uploadDir, DatasetFileName(userID, datasetID))
}
