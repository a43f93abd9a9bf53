package models

import "time"

// Category partitions the file store. Each category has its own allowed
// extensions and per-file size cap, enforced by internal/storage.
type Category string

const (
	CategoryMF4       Category = "mf4"
	CategoryDBC       Category = "dbc"
	CategoryLayouts   Category = "layouts"
	CategoryMappings  Category = "mappings"
	CategoryAnalyses  Category = "analyses"
)

// StoredFile is a row in the file store. OwnerID == "" means a process-
// global default/read-only asset.
type StoredFile struct {
	ID           string         `json:"id" db:"id"`
	OwnerID      string         `json:"ownerId,omitempty" db:"user_id"`
	Category     Category       `json:"category" db:"category"`
	Filename     string         `json:"-" db:"filename"`
	OriginalName string         `json:"originalName" db:"original_name"`
	SizeBytes    int64          `json:"sizeBytes" db:"size_bytes"`
	UploadedAt   time.Time      `json:"uploadedAt" db:"uploaded_at"`
	Description  string         `json:"description,omitempty" db:"description"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// IsDefault reports whether this file is a process-global, read-only asset.
func (f *StoredFile) IsDefault() bool { return f.OwnerID == "" }

// UserQuota is the per-user byte budget enforced by the file store.
type UserQuota struct {
	UserID     string `json:"userId" db:"user_id"`
	QuotaBytes int64  `json:"quotaBytes" db:"quota_bytes"`
}

// StorageInfo summarizes a user's current usage against their quota.
type StorageInfo struct {
	QuotaBytes int64            `json:"quotaBytes"`
	UsedBytes  int64            `json:"usedBytes"`
	FileCount  int              `json:"fileCount"`
	ByCategory map[Category]int `json:"byCategory"`
}
