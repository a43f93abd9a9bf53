package dbx

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fieldtrace/signalstudio/internal/models"
)

// FileDB handles database operations for stored files and per-user quotas.
type FileDB struct {
	db *sql.DB
}

// NewFileDB creates a new FileDB instance.
func NewFileDB(db *sql.DB) *FileDB {
	return &FileDB{db: db}
}

// Insert records a newly stored file. ownerID == "" registers a
// process-global default asset.
func (f *FileDB) Insert(ctx context.Context, file *models.StoredFile) error {
	meta, err := encodeMetadata(file.Metadata)
	if err != nil {
		return err
	}
	_, err = f.db.ExecContext(ctx, `
		INSERT INTO stored_files (id, user_id, category, filename, original_name, size_bytes, uploaded_at, description, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, file.ID, file.OwnerID, file.Category, file.Filename, file.OriginalName,
		file.SizeBytes, file.UploadedAt, file.Description, meta)
	return err
}

// InsertIfAbsent inserts a row only if its id doesn't already exist,
// supporting the idempotent default-asset registration at startup.
func (f *FileDB) InsertIfAbsent(ctx context.Context, file *models.StoredFile) (inserted bool, err error) {
	meta, err := encodeMetadata(file.Metadata)
	if err != nil {
		return false, err
	}
	res, err := f.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO stored_files (id, user_id, category, filename, original_name, size_bytes, uploaded_at, description, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, file.ID, file.OwnerID, file.Category, file.Filename, file.OriginalName,
		file.SizeBytes, file.UploadedAt, file.Description, meta)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func encodeMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(b), nil
}

func scanStoredFile(rows interface{ Scan(...any) error }) (*models.StoredFile, error) {
	f := &models.StoredFile{}
	var meta string
	err := rows.Scan(&f.ID, &f.OwnerID, &f.Category, &f.Filename, &f.OriginalName,
		&f.SizeBytes, &f.UploadedAt, &f.Description, &meta)
	if err != nil {
		return nil, err
	}
	if meta != "" {
		_ = json.Unmarshal([]byte(meta), &f.Metadata)
	}
	return f, nil
}

const fileColumns = `id, user_id, category, filename, original_name, size_bytes, uploaded_at, description, metadata`

// Get retrieves one file by ID, scoped to an owner (empty ownerID allows
// matching a default asset).
func (f *FileDB) Get(ctx context.Context, id, ownerID string) (*models.StoredFile, error) {
	row := f.db.QueryRowContext(ctx, `
		SELECT `+fileColumns+`
		FROM stored_files WHERE id = ? AND (user_id = ? OR user_id = '')
	`, id, ownerID)
	file, err := scanStoredFile(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("file not found")
		}
		return nil, err
	}
	return file, nil
}

// ListByOwner returns every file visible to ownerID in a category: the
// owner's own uploads plus any process-global defaults. category == ""
// lists all categories.
func (f *FileDB) ListByOwner(ctx context.Context, ownerID string, category models.Category, includeDefault bool) ([]*models.StoredFile, error) {
	query := `SELECT ` + fileColumns + ` FROM stored_files WHERE `
	args := []any{}
	if includeDefault {
		query += `(user_id = ? OR user_id = '')`
		args = append(args, ownerID)
	} else {
		query += `user_id = ?`
		args = append(args, ownerID)
	}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY uploaded_at DESC`

	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*models.StoredFile
	for rows.Next() {
		file, err := scanStoredFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stored file row: %w", err)
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// ListAllForReconciliation returns every row whose user_id equals ownerID
// (ownerID == "" selects the default rows) — used by the orphan reconciler.
func (f *FileDB) ListAllForReconciliation(ctx context.Context, ownerID string) ([]*models.StoredFile, error) {
	rows, err := f.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM stored_files WHERE user_id = ?`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*models.StoredFile
	for rows.Next() {
		file, err := scanStoredFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// ListAllOwnerIDs returns every distinct non-default owner id with at
// least one stored file.
func (f *FileDB) ListAllOwnerIDs(ctx context.Context) ([]string, error) {
	rows, err := f.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM stored_files WHERE user_id != ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a file row owned by ownerID (defaults cannot be deleted
// through this path since ownerID is never "").
func (f *FileDB) Delete(ctx context.Context, id, ownerID string) error {
	res, err := f.db.ExecContext(ctx, `DELETE FROM stored_files WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("file not found")
	}
	return nil
}

// DeleteByID removes a row regardless of owner — used only by the orphan
// reconciler, which has already determined the backing file is gone.
func (f *FileDB) DeleteByID(ctx context.Context, id string) error {
	_, err := f.db.ExecContext(ctx, `DELETE FROM stored_files WHERE id = ?`, id)
	return err
}

// UpdateMeta updates a file's description and/or metadata.
func (f *FileDB) UpdateMeta(ctx context.Context, id, ownerID, description string, metadata map[string]any) error {
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}
	res, err := f.db.ExecContext(ctx, `
		UPDATE stored_files SET description = ?, metadata = ? WHERE id = ? AND user_id = ?
	`, description, meta, id, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("file not found")
	}
	return nil
}

// UpdateContentSize updates a file's recorded size after its on-disk
// content was overwritten in place (layout/script edits).
func (f *FileDB) UpdateContentSize(ctx context.Context, id, ownerID string, sizeBytes int64) error {
	res, err := f.db.ExecContext(ctx, `
		UPDATE stored_files SET size_bytes = ? WHERE id = ? AND user_id = ?
	`, sizeBytes, id, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("file not found")
	}
	return nil
}

// UsageByOwner sums stored bytes and per-category counts for a user's own
// uploads (defaults never count against quota).
func (f *FileDB) UsageByOwner(ctx context.Context, ownerID string) (int64, map[models.Category]int, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT category, COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM stored_files WHERE user_id = ?
		GROUP BY category
	`, ownerID)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	var total int64
	byCategory := map[models.Category]int{}
	for rows.Next() {
		var category models.Category
		var count int
		var size int64
		if err := rows.Scan(&category, &count, &size); err != nil {
			return 0, nil, err
		}
		byCategory[category] = count
		total += size
	}
	return total, byCategory, rows.Err()
}

// GetQuota retrieves a user's byte quota.
func (f *FileDB) GetQuota(ctx context.Context, userID string, fallback int64) (int64, error) {
	var quota int64
	err := f.db.QueryRowContext(ctx, `SELECT quota_bytes FROM user_quotas WHERE user_id = ?`, userID).Scan(&quota)
	if err != nil {
		if err == sql.ErrNoRows {
			return fallback, nil
		}
		return 0, err
	}
	return quota, nil
}

// SetQuota updates a user's byte quota (admin operation).
func (f *FileDB) SetQuota(ctx context.Context, userID string, quotaBytes int64) error {
	_, err := f.db.ExecContext(ctx, `
		INSERT INTO user_quotas (user_id, quota_bytes) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET quota_bytes = excluded.quota_bytes
	`, userID, quotaBytes)
	return err
}
