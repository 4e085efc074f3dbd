package models

import "github.com/taskforge/platform/pkg/apperr"

// FolderFile is one manifest entry inside a FolderUpload's file tree.
type FolderFile struct {
	RelativePath string `json:"relative_path"`
	FileSize     int64  `json:"file_size"`
	ContentType  string `json:"content_type"`
	S3Key        string `json:"s3_key"`
	Depth        int    `json:"depth"`
	ParentPath   string `json:"parent_path,omitempty"`
}

// Limits enforced on every FolderUpload, per spec.md §6.
const (
	MaxFolderFiles = 1000
	MaxFolderSize  = 500 * 1024 * 1024 // 500 MiB
	MaxFolderDepth = 10
)

// FolderUpload is the manifest of an uploaded directory tree, stored
// alongside a Conversation or Training so its files can be referenced from a
// prompt without re-uploading them individually.
type FolderUpload struct {
	Base
	ProjectID  string       `json:"project_id"`
	Files      []FolderFile `json:"files"`
	TotalFiles int          `json:"total_files"`
	TotalSize  int64        `json:"total_size"`
	MaxDepth   int          `json:"max_depth"`
}

// CollectionFolderUploads is the Store collection name for FolderUpload documents.
const CollectionFolderUploads = "folder_uploads"

// Validate reports whether the upload fits within the closed limit set.
func (f *FolderUpload) Validate() error {
	if f.TotalFiles > MaxFolderFiles {
		return apperr.Validation
	}
	if f.TotalSize > MaxFolderSize {
		return apperr.Validation
	}
	if f.MaxDepth > MaxFolderDepth {
		return apperr.Validation
	}
	return nil
}
