package postgres

import (
	"context"
	"database/sql"

	"labdocs/internal/model"
	"labdocs/internal/repository"
)

// SharePostgres is a PostgreSQL implementation of repository.ShareRepository.
type SharePostgres struct {
	db *sql.DB
}

// NewSharePostgres creates a new SharePostgres repository.
func NewSharePostgres(db *sql.DB) *SharePostgres {
	return &SharePostgres{db: db}
}

var _ repository.ShareRepository = (*SharePostgres)(nil)

const shareColumns = `document_id, grantee_id, can_edit, can_delete, created_at, updated_at`

// Upsert creates the grant or overwrites its flags. The composite primary
// key guarantees at most one grant per (document, grantee) pair.
func (r *SharePostgres) Upsert(ctx context.Context, g model.ShareGrant) (*model.ShareGrant, error) {
	const q = `
		INSERT INTO document_shares (document_id, grantee_id, can_edit, can_delete, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (document_id, grantee_id)
		DO UPDATE SET can_edit = EXCLUDED.can_edit, can_delete = EXCLUDED.can_delete, updated_at = now()
		RETURNING ` + shareColumns
	row := r.db.QueryRowContext(ctx, q, g.DocumentID, g.GranteeID, g.CanEdit, g.CanDelete)
	var out model.ShareGrant
	if err := row.Scan(
		&out.DocumentID, &out.GranteeID, &out.CanEdit, &out.CanDelete, &out.CreatedAt, &out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes the grant and reports whether it existed.
func (r *SharePostgres) Delete(ctx context.Context, docID, granteeID string) (bool, error) {
	const q = `DELETE FROM document_shares WHERE document_id = $1 AND grantee_id = $2`
	res, err := r.db.ExecContext(ctx, q, docID, granteeID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByDocument returns every grant on the document.
func (r *SharePostgres) ListByDocument(ctx context.Context, docID string) ([]model.ShareGrant, error) {
	const q = `SELECT ` + shareColumns + ` FROM document_shares WHERE document_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := make([]model.ShareGrant, 0)
	for rows.Next() {
		var g model.ShareGrant
		if err := rows.Scan(
			&g.DocumentID, &g.GranteeID, &g.CanEdit, &g.CanDelete, &g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}
