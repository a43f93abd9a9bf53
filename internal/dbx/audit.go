package dbx

import (
	"context"
	"database/sql"
	"time"
)

// AuditDB persists security-relevant request events for later investigation
// (who did what, from where, when). It is a write path only; nothing in
// this service currently reads audit_log back through the API.
type AuditDB struct {
	db *sql.DB
}

// NewAuditDB constructs an AuditDB over the shared connection.
func NewAuditDB(db *sql.DB) *AuditDB {
	return &AuditDB{db: db}
}

// Insert records one audit event. changesJSON is a pre-serialized JSON blob
// holding the event details that don't warrant their own column.
func (a *AuditDB) Insert(ctx context.Context, userID, action, resourceType, resourceID, changesJSON string, ts time.Time, ip string) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO audit_log (user_id, action, resource_type, resource_id, changes, timestamp, ip_address)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, userID, action, resourceType, resourceID, changesJSON, ts, ip)
	return err
}
