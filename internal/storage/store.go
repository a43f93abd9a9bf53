// Package storage implements the per-user + default file repository
// with quota accounting, category partitioning, and orphan reconciliation.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/dbx"
	"github.com/fieldtrace/signalstudio/internal/logger"
	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/google/uuid"
)

const (
	defaultQuotaBytes = 5 * 1024 * 1024 * 1024
	maxFilesPerUser    = 1000
	maxFilesPerCategory = 200
)

// Store is the file store.
type Store struct {
	files *dbx.FileDB
	root  string

	defaultQuota   int64
	maxFiles       int
	maxFilesPerCat int

	// ownerLocks serializes "check-quota + save" per owner so two
	// concurrent uploads from the same account can't both pass the
	// quota check before either commits.
	ownerLocks sync.Map // map[string]*sync.Mutex
}

// Config tunes the Store's limits; zero values fall back to the
// defaults.
type Config struct {
	Root                string
	DefaultQuotaBytes   int64
	MaxFilesPerUser     int
	MaxFilesPerCategory int
}

// New constructs a Store rooted at cfg.Root.
func New(files *dbx.FileDB, cfg Config) *Store {
	s := &Store{
		files:          files,
		root:           cfg.Root,
		defaultQuota:   cfg.DefaultQuotaBytes,
		maxFiles:       cfg.MaxFilesPerUser,
		maxFilesPerCat: cfg.MaxFilesPerCategory,
	}
	if s.defaultQuota <= 0 {
		s.defaultQuota = defaultQuotaBytes
	}
	if s.maxFiles <= 0 {
		s.maxFiles = maxFilesPerUser
	}
	if s.maxFilesPerCat <= 0 {
		s.maxFilesPerCat = maxFilesPerCategory
	}
	return s
}

func (s *Store) lockFor(ownerID string) *sync.Mutex {
	v, _ := s.ownerLocks.LoadOrStore(ownerID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// SaveFile writes an uploaded file's bytes to disk and records a row,
// enforcing the quota-check order: extension, per-file
// max, quota remaining, total count, per-category count — all checked
// atomically under the owner's lock.
func (s *Store) SaveFile(ctx context.Context, ownerID string, category models.Category, originalName string, data io.Reader, size int64, description string, metadata map[string]any) (*models.StoredFile, error) {
	if !validCategory(category) {
		return nil, apperr.Validation("unknown category")
	}
	if !validExtension(category, originalName) {
		return nil, apperr.Validation(fmt.Sprintf("extension not allowed for category %s", category))
	}
	if size > maxBytesFor(category) {
		return nil, apperr.Validation("file exceeds the per-file size limit for this category")
	}
	if len(description) > 500 {
		return nil, apperr.Validation("description exceeds 500 characters")
	}

	lock := s.lockFor(ownerID)
	lock.Lock()
	defer lock.Unlock()

	used, byCategory, err := s.files.UsageByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	quota, err := s.files.GetQuota(ctx, ownerID, s.defaultQuota)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if used+size > quota {
		return nil, apperr.QuotaExceeded(fmt.Sprintf("quota exceeded, %d bytes remaining", quota-used))
	}
	total := 0
	for _, n := range byCategory {
		total += n
	}
	if total >= s.maxFiles {
		return nil, apperr.QuotaExceeded("maximum file count reached")
	}
	if byCategory[category] >= s.maxFilesPerCat {
		return nil, apperr.QuotaExceeded(fmt.Sprintf("maximum file count reached for category %s", category))
	}

	id := uuid.NewString()
	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = primaryExtension(category)
	}
	filename := id + ext

	diskPath, err := s.resolvePath(ownerID, category, filename)
	if err != nil {
		return nil, apperr.Validation("invalid path")
	}
	if err := os.MkdirAll(filepath.Dir(diskPath), 0o750); err != nil {
		return nil, apperr.Internal(err)
	}

	f, err := os.OpenFile(diskPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	written, err := io.Copy(f, data)
	closeErr := f.Close()
	if err != nil {
		os.Remove(diskPath)
		return nil, apperr.Internal(err)
	}
	if closeErr != nil {
		os.Remove(diskPath)
		return nil, apperr.Internal(closeErr)
	}

	file := &models.StoredFile{
		ID:           id,
		OwnerID:      ownerID,
		Category:     category,
		Filename:     filename,
		OriginalName: originalName,
		SizeBytes:    written,
		Description:  description,
		Metadata:     metadata,
	}
	file.UploadedAt = nowFunc()

	if err := s.files.Insert(ctx, file); err != nil {
		os.Remove(diskPath)
		return nil, apperr.Internal(err)
	}

	logger.Storage().Info().Str("owner", ownerID).Str("category", string(category)).Str("id", id).Msg("file stored")
	return file, nil
}

// maxJSONDepth bounds artifact nesting; anything deeper is rejected
// before it reaches disk.
const maxJSONDepth = 10

// jsonDepth measures the nesting depth of a marshaled JSON document by
// tracking open containers outside string literals.
func jsonDepth(b []byte) int {
	depth, max := 0, 0
	inString, escaped := false, false
	for _, c := range b {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > max {
				max = depth
			}
		case '}', ']':
			depth--
		}
	}
	return max
}

// SaveJSON marshals obj and stores it as a named JSON file, used for
// layouts, scripts, and computed-variable exports when those artifacts
// are written through the file store.
func (s *Store) SaveJSON(ctx context.Context, ownerID string, category models.Category, name string, obj any, description string) (*models.StoredFile, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if jsonDepth(b) > maxJSONDepth {
		return nil, apperr.Validation(fmt.Sprintf("artifact nesting exceeds depth %d", maxJSONDepth))
	}
	if name == "" {
		name = "artifact.json"
	}
	return s.SaveFile(ctx, ownerID, category, name, &byteReader{b: b}, int64(len(b)), description, nil)
}

type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}

// UpdateJSON overwrites an existing JSON artifact's on-disk content in
// place, preserving its id — used to persist layout/script edits
// without minting a new file identity each save. Re-runs the same
// per-owner quota check as SaveFile against the size delta.
func (s *Store) UpdateJSON(ctx context.Context, id, ownerID string, obj any) (*models.StoredFile, error) {
	f, err := s.GetFile(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if f.IsDefault() {
		return nil, apperr.Forbidden("default files cannot be modified")
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if jsonDepth(b) > maxJSONDepth {
		return nil, apperr.Validation(fmt.Sprintf("artifact nesting exceeds depth %d", maxJSONDepth))
	}
	if int64(len(b)) > maxBytesFor(f.Category) {
		return nil, apperr.Validation(fmt.Sprintf("artifact exceeds the per-file size limit for category %s", f.Category))
	}

	lock := s.lockFor(ownerID)
	lock.Lock()
	defer lock.Unlock()

	used, _, err := s.files.UsageByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	quota, err := s.files.GetQuota(ctx, ownerID, s.defaultQuota)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if used-f.SizeBytes+int64(len(b)) > quota {
		return nil, apperr.QuotaExceeded(fmt.Sprintf("quota exceeded, %d bytes remaining", quota-used+f.SizeBytes))
	}

	path, err := s.resolvePath(f.OwnerID, f.Category, f.Filename)
	if err != nil {
		return nil, apperr.Validation("invalid path")
	}
	if err := os.WriteFile(path, b, 0o640); err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.files.UpdateContentSize(ctx, id, ownerID, int64(len(b))); err != nil {
		return nil, apperr.Internal(err)
	}
	return s.GetFile(ctx, id, ownerID)
}

// GetFile retrieves one file's row, scoped to ownerID (a default file is
// visible to any owner).
func (s *Store) GetFile(ctx context.Context, id, ownerID string) (*models.StoredFile, error) {
	f, err := s.files.Get(ctx, id, ownerID)
	if err != nil {
		return nil, apperr.NotFound("file")
	}
	return f, nil
}

// ReadJSON loads a file's on-disk bytes and unmarshals them into out.
func (s *Store) ReadJSON(ctx context.Context, id, ownerID string, out any) error {
	f, err := s.GetFile(ctx, id, ownerID)
	if err != nil {
		return err
	}
	path, err := s.resolvePath(f.OwnerID, f.Category, f.Filename)
	if err != nil {
		return apperr.Validation("invalid path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return apperr.Wrap(apperr.CodeNotFound, "file content not found", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// GetPath returns the validated on-disk path for a file, for download
// endpoints.
func (s *Store) GetPath(ctx context.Context, id, ownerID string) (string, *models.StoredFile, error) {
	f, err := s.GetFile(ctx, id, ownerID)
	if err != nil {
		return "", nil, err
	}
	path, err := s.resolvePath(f.OwnerID, f.Category, f.Filename)
	if err != nil {
		return "", nil, apperr.Validation("invalid path")
	}
	return path, f, nil
}

// List returns files visible to ownerID, optionally restricted to one
// category and optionally excluding process-global defaults.
func (s *Store) List(ctx context.Context, ownerID string, category models.Category, includeDefault bool) ([]*models.StoredFile, error) {
	files, err := s.files.ListByOwner(ctx, ownerID, category, includeDefault)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return files, nil
}

// ListDefaults returns every process-global default asset, optionally
// restricted to one category.
func (s *Store) ListDefaults(ctx context.Context, category models.Category) ([]*models.StoredFile, error) {
	return s.List(ctx, "", category, true)
}

// Delete removes a file owned by ownerID. Owner == "" is never accepted
// here, so default files can never be deleted through this path.
func (s *Store) Delete(ctx context.Context, id, ownerID string) error {
	if ownerID == "" {
		return apperr.Forbidden("default files cannot be deleted")
	}
	f, err := s.files.Get(ctx, id, ownerID)
	if err != nil {
		return apperr.NotFound("file")
	}
	if f.IsDefault() {
		return apperr.Forbidden("default files cannot be deleted")
	}

	if err := s.files.Delete(ctx, id, ownerID); err != nil {
		return apperr.NotFound("file")
	}
	if path, err := s.resolvePath(ownerID, f.Category, f.Filename); err == nil {
		_ = os.Remove(path)
	}
	return nil
}

// UpdateMeta updates a file's description/metadata. Defaults are
// immutable, same as Delete.
func (s *Store) UpdateMeta(ctx context.Context, id, ownerID, description string, metadata map[string]any) (*models.StoredFile, error) {
	if ownerID == "" {
		return nil, apperr.Forbidden("default files cannot be modified")
	}
	if err := s.files.UpdateMeta(ctx, id, ownerID, description, metadata); err != nil {
		return nil, apperr.NotFound("file")
	}
	return s.GetFile(ctx, id, ownerID)
}

// Info reports a user's quota usage summary.
func (s *Store) Info(ctx context.Context, ownerID string) (*models.StorageInfo, error) {
	used, byCategory, err := s.files.UsageByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	quota, err := s.files.GetQuota(ctx, ownerID, s.defaultQuota)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	count := 0
	for _, n := range byCategory {
		count += n
	}
	return &models.StorageInfo{
		QuotaBytes: quota,
		UsedBytes:  used,
		FileCount:  count,
		ByCategory: byCategory,
	}, nil
}

// SetQuota updates a user's byte quota (admin operation).
func (s *Store) SetQuota(ctx context.Context, ownerID string, quotaBytes int64) error {
	return s.files.SetQuota(ctx, ownerID, quotaBytes)
}

// nowFunc is indirected only so tests could override it if ever needed;
// kept simple and direct otherwise.
var nowFunc = defaultNow
