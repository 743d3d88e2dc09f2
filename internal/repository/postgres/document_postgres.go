package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"labdocs/internal/model"
	"labdocs/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

// linkColumns maps each context kind to its slot column. Kinds form a closed
// enum, so interpolating the column name is safe.
var linkColumns = map[model.ContextKind]string{
	model.KindProject:           "project_id",
	model.KindActivity:          "activity_id",
	model.KindTask:              "task_id",
	model.KindSeminar:           "seminar_id",
	model.KindTraining:          "training_id",
	model.KindInternship:        "internship_id",
	model.KindSupervision:       "supervision_id",
	model.KindKnowledgeTransfer: "knowledge_transfer_id",
	model.KindEvent:             "event_id",
}

const documentColumns = `
	id, owner_id, title, COALESCE(description, ''), doc_type,
	storage_path, filename, size, content_type, is_public, tags,
	project_id, activity_id, task_id, seminar_id, training_id,
	internship_id, supervision_id, knowledge_transfer_id, event_id,
	state, deleted_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		d       model.Document
		tagsRaw []byte
		slots   [9]sql.NullString
		deleted sql.NullTime
	)
	if err := row.Scan(
		&d.ID, &d.OwnerID, &d.Title, &d.Description, &d.Type,
		&d.StoragePath, &d.Filename, &d.Size, &d.ContentType, &d.IsPublic, &tagsRaw,
		&slots[0], &slots[1], &slots[2], &slots[3], &slots[4],
		&slots[5], &slots[6], &slots[7], &slots[8],
		&d.State, &deleted, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &d.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	kinds := model.ContextKinds()
	for i, s := range slots {
		if s.Valid {
			if d.Links == nil {
				d.Links = make(map[model.ContextKind]string)
			}
			d.Links[kinds[i]] = s.String
		}
	}
	if deleted.Valid {
		t := deleted.Time
		d.DeletedAt = &t
	}
	return &d, nil
}

func encodeTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(tags)
}

// Create inserts a new document row and returns the stored record.
// Documents are always created active and unlinked.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	tags, err := encodeTags(doc.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	q := `
		INSERT INTO documents (
			id, owner_id, title, description, doc_type,
			storage_path, filename, size, content_type, is_public, tags,
			state, created_at, updated_at
		)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.OwnerID,
		doc.Title,
		doc.Description,
		doc.Type,
		doc.StoragePath,
		doc.Filename,
		doc.Size,
		doc.ContentType,
		doc.IsPublic,
		tags,
		model.StateActive,
		doc.CreatedAt,
	)
	return scanDocument(row)
}

// FindByID fetches a single document with its favorited-by set.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	q := `SELECT` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}

	const qFav = `SELECT user_id FROM document_favorites WHERE document_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, qFav, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		doc.FavoritedBy = append(doc.FavoritedBy, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns documents matching the filter using LIMIT/OFFSET pagination
// and a total count. Favorited-by sets are not loaded for listings.
func (r *DocumentPostgres) List(ctx context.Context, f repository.DocumentFilter, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	where, args := buildFilter(f)

	qCount := `SELECT COUNT(*) FROM documents` + where
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, args...).Scan(&total); err != nil {
		return nil, err
	}

	qList := `SELECT` + documentColumns + ` FROM documents` + where +
		fmt.Sprintf(` ORDER BY updated_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, qList, append(args, pq.Limit, pq.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

func buildFilter(f repository.DocumentFilter) (string, []any) {
	conds := make([]string, 0, 6)
	args := make([]any, 0, 6)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	state := f.State
	if state == "" {
		state = model.StateActive
	}
	conds = append(conds, "state = "+arg(state))

	// Visibility: admins see everything; trash is always restricted to its
	// owner for non-admins.
	if !f.ViewerIsAdmin && f.ViewerID != "" {
		p := arg(f.ViewerID)
		if state == model.StateTrashed {
			conds = append(conds, "owner_id = "+p)
		} else {
			conds = append(conds, `(owner_id = `+p+` OR is_public OR EXISTS (
				SELECT 1 FROM document_shares s WHERE s.document_id = documents.id AND s.grantee_id = `+p+`))`)
		}
	}

	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		conds = append(conds, `(title ILIKE `+p+` OR COALESCE(description, '') ILIKE `+p+
			` OR filename ILIKE `+p+` OR tags::text ILIKE `+p+`)`)
	}
	if f.Type != "" {
		conds = append(conds, "doc_type = "+arg(f.Type))
	}
	if f.OwnerID != "" {
		conds = append(conds, "owner_id = "+arg(f.OwnerID))
	}
	if f.CreatedFrom != nil {
		conds = append(conds, "created_at >= "+arg(*f.CreatedFrom))
	}
	if f.CreatedTo != nil {
		conds = append(conds, "created_at <= "+arg(*f.CreatedTo))
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// UpdateMetadata persists the mutable metadata fields and bumps updated_at.
func (r *DocumentPostgres) UpdateMetadata(ctx context.Context, doc *model.Document) (*model.Document, error) {
	tags, err := encodeTags(doc.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	q := `
		UPDATE documents
		SET title = $2, description = NULLIF($3, ''), doc_type = $4, tags = $5,
		    is_public = $6, updated_at = now()
		WHERE id = $1
		RETURNING` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID, doc.Title, doc.Description, doc.Type, tags, doc.IsPublic,
	)
	return scanDocument(row)
}

// SetLink fills the slot for kind only if it is still empty.
func (r *DocumentPostgres) SetLink(ctx context.Context, id string, kind model.ContextKind, entityID string) (bool, error) {
	col, ok := linkColumns[kind]
	if !ok {
		return false, fmt.Errorf("unknown context kind: %s", kind)
	}
	q := fmt.Sprintf(`UPDATE documents SET %s = $2, updated_at = now() WHERE id = $1 AND %s IS NULL`, col, col)
	res, err := r.db.ExecContext(ctx, q, id, entityID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearLink empties the slot for kind.
func (r *DocumentPostgres) ClearLink(ctx context.Context, id string, kind model.ContextKind) error {
	col, ok := linkColumns[kind]
	if !ok {
		return fmt.Errorf("unknown context kind: %s", kind)
	}
	q := fmt.Sprintf(`UPDATE documents SET %s = NULL, updated_at = now() WHERE id = $1`, col)
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// ClearAllLinks empties every slot.
func (r *DocumentPostgres) ClearAllLinks(ctx context.Context, id string) error {
	sets := make([]string, 0, len(linkColumns))
	for _, kind := range model.ContextKinds() {
		sets = append(sets, linkColumns[kind]+" = NULL")
	}
	q := `UPDATE documents SET ` + strings.Join(sets, ", ") + `, updated_at = now() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// SetState transitions state and deleted_at together so the
// state-iff-deleted_at invariant cannot be observed broken.
func (r *DocumentPostgres) SetState(ctx context.Context, id string, state model.LifecycleState, deletedAt *time.Time) error {
	const q = `UPDATE documents SET state = $2, deleted_at = $3, updated_at = now() WHERE id = $1`
	var del sql.NullTime
	if deletedAt != nil {
		del = sql.NullTime{Time: *deletedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q, id, state, del)
	return err
}

// Delete hard-deletes the row; share grants and favorites cascade via FK.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) (bool, error) {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteTrashedBefore hard-deletes the row only if it is still trashed and
// expired at the time of the delete.
func (r *DocumentPostgres) DeleteTrashedBefore(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	const q = `DELETE FROM documents WHERE id = $1 AND state = $2 AND deleted_at < $3`
	res, err := r.db.ExecContext(ctx, q, id, model.StateTrashed, cutoff)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListTrashedBefore returns sweep candidates ordered oldest first.
func (r *DocumentPostgres) ListTrashedBefore(ctx context.Context, cutoff time.Time) ([]model.Document, error) {
	q := `SELECT` + documentColumns + ` FROM documents WHERE state = $1 AND deleted_at < $2 ORDER BY deleted_at`
	rows, err := r.db.QueryContext(ctx, q, model.StateTrashed, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// AddFavorite records the favorite; duplicate toggles are no-ops.
func (r *DocumentPostgres) AddFavorite(ctx context.Context, docID, userID string) error {
	const q = `
		INSERT INTO document_favorites (document_id, user_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (document_id, user_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, q, docID, userID)
	return err
}

// RemoveFavorite removes the favorite if present.
func (r *DocumentPostgres) RemoveFavorite(ctx context.Context, docID, userID string) error {
	const q = `DELETE FROM document_favorites WHERE document_id = $1 AND user_id = $2`
	_, err := r.db.ExecContext(ctx, q, docID, userID)
	return err
}
