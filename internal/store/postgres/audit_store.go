package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL.
type AuditStore struct {
	db DBTX
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(db DBTX) *AuditStore {
	return &AuditStore{db: db}
}

// Log appends an audit entry. detail is stored as JSONB.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit detail: %w", err)
	}
	if _, err := s.db.Exec(ctx, `INSERT INTO audit_log (event, detail) VALUES ($1, $2)`, event, detailJSON); err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", event, err)
	}
	return nil
}

// List returns audit entries newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	query, args := listClause(`SELECT id, event, detail, created_at FROM audit_log WHERE 1=1`,
		nil, "created_at", "created_at DESC", opts)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			e          domain.AuditEntry
			detailJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.Event, &detailJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		if detailJSON != nil {
			if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal audit detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list audit entries rows: %w", err)
	}
	return entries, nil
}

var _ domain.AuditStore = (*AuditStore)(nil)
