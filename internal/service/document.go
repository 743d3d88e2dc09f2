package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"labdocs/internal/config"
	"labdocs/internal/model"
	"labdocs/internal/notify"
	"labdocs/internal/permission"
	"labdocs/internal/repository"
	"labdocs/internal/storage"
)

// AccessFacts carries the per-call facts only the invoking feature knows:
// a membership oracle for the linked context entities and whether the caller
// is "responsible" for the linked entity (activity responsible, project
// creator). The engine never looks these up itself.
type AccessFacts struct {
	Membership  permission.MembershipFunc
	Responsible bool
}

// CreateInput is the metadata accompanying an upload.
type CreateInput struct {
	Title       string
	Description string
	Type        model.DocumentType
	Tags        []string
	IsPublic    bool

	Filename    string
	ContentType string
	Size        int64
}

// MetadataPatch is a partial metadata update; nil fields are left unchanged.
type MetadataPatch struct {
	Title       *string
	Description *string
	Type        *model.DocumentType
	Tags        *[]string
	IsPublic    *bool
}

// ListFilter narrows a listing from the caller's perspective.
type ListFilter struct {
	Search      string
	Type        model.DocumentType
	OwnerID     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Trashed     bool
}

// DocumentPage is the service-level DTO for paginated documents.
type DocumentPage struct {
	Items   []model.Document `json:"data"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
	HasNext bool             `json:"has_next"`
	HasPrev bool             `json:"has_prev"`
}

// DocumentService is the only entry point other features call. It consults
// the permission engine before any mutation, delegates state changes to the
// lifecycle manager and relationship changes to the link/share registries,
// and dispatches notifications after the mutation commits.
type DocumentService interface {
	// Create uploads the content, saves metadata, and rolls the blob back
	// if the metadata save fails. The document starts active, unlinked and
	// ungranted.
	Create(ctx context.Context, principal model.Principal, r io.Reader, in CreateInput) (*model.Document, error)

	// Get returns the document if the principal holds View.
	Get(ctx context.Context, principal model.Principal, id string, facts AccessFacts) (*model.Document, error)

	// List returns the page of documents the principal may view.
	List(ctx context.Context, principal model.Principal, f ListFilter, page, limit int) (*DocumentPage, error)

	// Download streams the blob if the principal holds Download.
	Download(ctx context.Context, principal model.Principal, id string, facts AccessFacts) (io.ReadCloser, *model.Document, error)

	// PresignDownload returns a time-limited download URL.
	PresignDownload(ctx context.Context, principal model.Principal, id string, facts AccessFacts, expiry time.Duration) (string, error)

	// UpdateMetadata applies a partial metadata update; requires Edit.
	UpdateMetadata(ctx context.Context, principal model.Principal, id string, patch MetadataPatch) (*model.Document, error)

	// Share upserts grants for the grantees; requires Share. One
	// notification event is emitted per grantee that was new.
	Share(ctx context.Context, principal model.Principal, id string, granteeIDs []string, canEdit, canDelete bool) ([]model.ShareGrant, error)

	// Revoke removes a grant; requires Share.
	Revoke(ctx context.Context, principal model.Principal, id, granteeID string) error

	// Link fills the context slot for kind; requires Edit.
	Link(ctx context.Context, principal model.Principal, id string, kind model.ContextKind, entityID string) (*model.Document, error)

	// Unlink clears the slot for kind, or every slot when kind is empty;
	// requires Unlink (owner, admin, or caller-supplied responsible).
	Unlink(ctx context.Context, principal model.Principal, id string, kind model.ContextKind, entityID string, facts AccessFacts) (*model.Document, error)

	// Trash soft-deletes; requires Delete.
	Trash(ctx context.Context, principal model.Principal, id string) (*model.Document, error)

	// Restore brings a trashed document back; owner or admin only.
	Restore(ctx context.Context, principal model.Principal, id string) (*model.Document, error)

	// Purge permanently deletes from either state; owner or admin only.
	Purge(ctx context.Context, principal model.Principal, id string) error

	// Sweep purges every trashed document older than the retention window;
	// admin only. Returns the purged count.
	Sweep(ctx context.Context, principal model.Principal) (int, error)

	// Favorite/Unfavorite toggle favorited-by membership; Favorite requires
	// Download. Both are idempotent.
	Favorite(ctx context.Context, principal model.Principal, id string, facts AccessFacts) error
	Unfavorite(ctx context.Context, principal model.Principal, id string) error
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store     storage.Storage
	docs      repository.DocumentRepository
	shareRepo repository.ShareRepository
	links     *LinkRegistry
	shares    *ShareRegistry
	lifecycle *LifecycleManager
	notifier  notify.Notifier
	cfg       config.DocumentConfig
	locks     keyedLocks
	now       func() time.Time
}

// NewDocumentService constructs a DocumentService with explicit dependencies.
// The lifecycle manager is shared with main, which runs its background
// sweeper. now may be nil and defaults to time.Now; tests inject a fixed
// clock.
func NewDocumentService(
	store storage.Storage,
	docs repository.DocumentRepository,
	shares repository.ShareRepository,
	notifier notify.Notifier,
	lifecycle *LifecycleManager,
	cfg config.DocumentConfig,
	now func() time.Time,
) DocumentService {
	if now == nil {
		now = time.Now
	}
	return &documentService{
		store:     store,
		docs:      docs,
		shareRepo: shares,
		links:     NewLinkRegistry(docs),
		shares:    NewShareRegistry(shares),
		lifecycle: lifecycle,
		notifier:  notifier,
		cfg:       cfg,
		now:       now,
	}
}

func (s *documentService) Create(ctx context.Context, principal model.Principal, r io.Reader, in CreateInput) (*model.Document, error) {
	if principal.ID == "" {
		return nil, fmt.Errorf("%w: principal is required", ErrValidation)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: reader is nil", ErrValidation)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.Type == "" {
		in.Type = model.TypeOther
	}
	if !model.ValidDocumentType(in.Type) {
		return nil, fmt.Errorf("%w: unknown document type %q", ErrValidation, in.Type)
	}
	if in.Size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive", ErrValidation)
	}
	if in.Size > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds maximum size of %d bytes", ErrValidation, s.cfg.MaxUploadBytes)
	}
	if !mimeAllowed(in.ContentType, s.cfg.AllowedMIMETypes) {
		return nil, fmt.Errorf("%w: content type %q is not allowed", ErrValidation, in.ContentType)
	}
	if err := validateTags(in.Tags); err != nil {
		return nil, err
	}

	// Stored object name is UUID + original extension, as elsewhere in the
	// platform; the original filename survives as metadata.
	ext := filepath.Ext(in.Filename)
	key := filepath.ToSlash(filepath.Join("documents", uuid.New().String()+ext))

	_, err := s.store.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: in.ContentType,
		Metadata: map[string]string{
			"original-filename": in.Filename,
			"owner-id":          principal.ID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	doc := &model.Document{
		ID:          uuid.New().String(),
		OwnerID:     principal.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Type:        in.Type,
		StoragePath: key,
		Filename:    in.Filename,
		Size:        in.Size,
		ContentType: in.ContentType,
		IsPublic:    in.IsPublic,
		Tags:        normalizeTags(in.Tags),
		State:       model.StateActive,
		CreatedAt:   s.now().UTC(),
	}
	stored, err := s.docs.Create(ctx, doc)
	if err != nil {
		// Rollback: delete the object from storage.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

func (s *documentService) Get(ctx context.Context, principal model.Principal, id string, facts AccessFacts) (*model.Document, error) {
	doc, grants, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	caps := s.caps(doc, grants, principal, facts)
	if !caps.Has(permission.View) {
		return nil, ErrAccessDenied
	}
	return doc, nil
}

func (s *documentService) List(ctx context.Context, principal model.Principal, f ListFilter, page, limit int) (*DocumentPage, error) {
	if principal.ID == "" {
		return nil, fmt.Errorf("%w: principal is required", ErrValidation)
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	state := model.StateActive
	if f.Trashed {
		state = model.StateTrashed
	}
	res, err := s.docs.List(ctx, repository.DocumentFilter{
		Search:        f.Search,
		Type:          f.Type,
		OwnerID:       f.OwnerID,
		CreatedFrom:   f.CreatedFrom,
		CreatedTo:     f.CreatedTo,
		State:         state,
		ViewerID:      principal.ID,
		ViewerIsAdmin: principal.Admin(),
	}, repository.PageQuery{Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		return nil, err
	}
	return &DocumentPage{
		Items:   res.Items,
		Total:   res.Total,
		Page:    page,
		Limit:   limit,
		HasNext: page*limit < res.Total,
		HasPrev: page > 1,
	}, nil
}

func (s *documentService) Download(ctx context.Context, principal model.Principal, id string, facts AccessFacts) (io.ReadCloser, *model.Document, error) {
	doc, grants, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	caps := s.caps(doc, grants, principal, facts)
	if !caps.Has(permission.Download) {
		return nil, nil, ErrAccessDenied
	}
	rc, _, err := s.store.Get(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("get from storage: %w", err)
	}
	return rc, doc, nil
}

func (s *documentService) PresignDownload(ctx context.Context, principal model.Principal, id string, facts AccessFacts, expiry time.Duration) (string, error) {
	doc, grants, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	caps := s.caps(doc, grants, principal, facts)
	if !caps.Has(permission.Download) {
		return "", ErrAccessDenied
	}
	u, err := s.store.PresignGet(ctx, doc.StoragePath, expiry)
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}
	return u, nil
}

func (s *documentService) UpdateMetadata(ctx context.Context, principal model.Principal, id string, patch MetadataPatch) (*model.Document, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	doc, grants, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	caps := s.caps(doc, grants, principal, AccessFacts{})
	if !caps.Has(permission.Edit) {
		return nil, ErrAccessDenied
	}

	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrValidation)
		}
		doc.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		doc.Description = *patch.Description
	}
	if patch.Type != nil {
		if !model.ValidDocumentType(*patch.Type) {
			return nil, fmt.Errorf("%w: unknown document type %q", ErrValidation, *patch.Type)
		}
		doc.Type = *patch.Type
	}
	if patch.Tags != nil {
		if err := validateTags(*patch.Tags); err != nil {
			return nil, err
		}
		doc.Tags = normalizeTags(*patch.Tags)
	}
	if patch.IsPublic != nil {
		doc.IsPublic = *patch.IsPublic
	}

	updated, err := s.docs.UpdateMetadata(ctx, doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (s *documentService) Share(ctx context.Context, principal model.Principal, id string, granteeIDs []string, canEdit, canDelete bool) ([]model.ShareGrant, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	doc, grants, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	caps := s.caps(doc, grants, principal, AccessFacts{})
	if !caps.Has(permission.Share) {
		return nil, ErrAccessDenied
	}

	res, err := s.shares.Grant(ctx, doc, granteeIDs, canEdit, canDelete)
	if err != nil {
		return nil, err
	}

	for _, grantee := range res.NewGrantees {
		s.dispatch(notify.Event{
			Kind:         notify.EventDocumentShared,
			DocumentID:   doc.ID,
			ActorID:      principal.ID,
			RecipientIDs: []string{grantee},
			Payload: map[string]any{
				"title":      doc.Title,
				"can_edit":   canEdit,
				"can_delete": canDelete,
			},
		})
	}
	return res.Grants, nil
}

func (s *documentService) Revoke(ctx context.Context, principal model.Principal, id, granteeID string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	doc, grants, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	caps := s.caps(doc, grants, principal, AccessFacts{})
	if !caps.Has(permission.Share) {
		return ErrAccessDenied
	}
	return s.shares.Revoke(ctx, doc.ID, granteeID)
}

func (s *documentService) Link(ctx context.Context, principal model.Principal, id string, kind model.ContextKind, entityID string) (*model.Document, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	doc, grants, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	caps := s.caps(doc, grants, principal, AccessFacts{})
	if doc.Trashed() {
		if caps.Has(permission.View) {
			return nil, ErrDocumentTrashed
		}
		return nil, ErrAccessDenied
	}
	if !caps.Has(permission.Edit) {
		return nil, ErrAccessDenied
	}
	if err := s.links.Link(ctx, doc, kind, entityID); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *documentService) Unlink(ctx context.Context, principal model.Principal, id string, kind model.ContextKind, entityID string, facts AccessFacts) (*model.Document, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	doc, grants, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	caps := s.caps(doc, grants, principal, facts)
	if !caps.Has(permission.Unlink) {
		return nil, ErrAccessDenied
	}
	if kind == "" {
		if err := s.links.UnlinkAll(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err := s.links.Unlink(ctx, doc, kind, entityID); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *documentService) Trash(ctx context.Context, principal model.Principal, id string) (*model.Document, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	doc, grants, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	caps := s.caps(doc, grants, principal, AccessFacts{})
	if doc.Trashed() {
		if caps.Has(permission.View) {
			return nil, ErrDocumentTrashed
		}
		return nil, ErrAccessDenied
	}
	if !caps.Has(permission.Delete) {
		return nil, ErrAccessDenied
	}
	if err := s.lifecycle.Trash(ctx, doc); err != nil {
		return nil, err
	}

	s.dispatch(notify.Event{
		Kind:         notify.EventDocumentTrashed,
		DocumentID:   doc.ID,
		ActorID:      principal.ID,
		RecipientIDs: s.recipients(doc, grants, principal.ID),
		Payload:      map[string]any{"title": doc.Title},
	})
	return doc, nil
}

func (s *documentService) Restore(ctx context.Context, principal model.Principal, id string) (*model.Document, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	doc, grants, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	caps := s.caps(doc, grants, principal, AccessFacts{})
	if !doc.Trashed() {
		if caps.Has(permission.PermanentDelete) {
			return nil, fmt.Errorf("%w: document is not trashed", ErrValidation)
		}
		return nil, ErrAccessDenied
	}
	if !caps.Has(permission.Restore) {
		return nil, ErrAccessDenied
	}
	if err := s.lifecycle.Restore(ctx, doc); err != nil {
		return nil, err
	}

	s.dispatch(notify.Event{
		Kind:         notify.EventDocumentRestored,
		DocumentID:   doc.ID,
		ActorID:      principal.ID,
		RecipientIDs: s.recipients(doc, grants, principal.ID),
		Payload:      map[string]any{"title": doc.Title},
	})
	return doc, nil
}

func (s *documentService) Purge(ctx context.Context, principal model.Principal, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	doc, grants, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	caps := s.caps(doc, grants, principal, AccessFacts{})
	if !caps.Has(permission.PermanentDelete) {
		return ErrAccessDenied
	}
	if err := s.lifecycle.Purge(ctx, doc); err != nil {
		return err
	}

	s.dispatch(notify.Event{
		Kind:         notify.EventDocumentPurged,
		DocumentID:   doc.ID,
		ActorID:      principal.ID,
		RecipientIDs: s.recipients(doc, grants, principal.ID),
		Payload:      map[string]any{"title": doc.Title},
	})
	return nil
}

func (s *documentService) Sweep(ctx context.Context, principal model.Principal) (int, error) {
	if !principal.Admin() {
		return 0, ErrAccessDenied
	}
	return s.lifecycle.Sweep(ctx)
}

func (s *documentService) Favorite(ctx context.Context, principal model.Principal, id string, facts AccessFacts) error {
	doc, grants, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	caps := s.caps(doc, grants, principal, facts)
	if !caps.Has(permission.Download) {
		return ErrAccessDenied
	}
	return s.docs.AddFavorite(ctx, doc.ID, principal.ID)
}

func (s *documentService) Unfavorite(ctx context.Context, principal model.Principal, id string) error {
	if principal.ID == "" {
		return fmt.Errorf("%w: principal is required", ErrValidation)
	}
	// Removing a stale favorite needs no capability: access may have been
	// revoked since it was set.
	doc, _, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return s.docs.RemoveFavorite(ctx, doc.ID, principal.ID)
}

// load fetches the document and its grants, mapping a missing row to
// ErrNotFound.
func (s *documentService) load(ctx context.Context, id string) (*model.Document, []model.ShareGrant, error) {
	if id == "" {
		return nil, nil, fmt.Errorf("%w: id is required", ErrValidation)
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	grants, err := s.shareRepo.ListByDocument(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list grants: %w", err)
	}
	return doc, grants, nil
}

func (s *documentService) caps(doc *model.Document, grants []model.ShareGrant, principal model.Principal, facts AccessFacts) permission.Set {
	return permission.Compute(permission.Input{
		Doc:         doc,
		Grants:      grants,
		Principal:   principal,
		Membership:  facts.Membership,
		Responsible: facts.Responsible,
	})
}

// recipients collects the owner and every grantee except the actor.
func (s *documentService) recipients(doc *model.Document, grants []model.ShareGrant, actorID string) []string {
	out := make([]string, 0, len(grants)+1)
	if doc.OwnerID != actorID {
		out = append(out, doc.OwnerID)
	}
	for _, g := range grants {
		if g.GranteeID != actorID {
			out = append(out, g.GranteeID)
		}
	}
	return out
}

// dispatch sends the event fire-and-forget: the mutation has already
// committed, so a failed or panicking notifier is logged and never surfaces
// to the caller.
func (s *documentService) dispatch(e notify.Event) {
	if s.notifier == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logDispatchError(e, fmt.Errorf("notifier panic: %v", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.Notify(ctx, e); err != nil {
			logDispatchError(e, err)
		}
	}()
}

func logDispatchError(e notify.Event, err error) {
	entry := map[string]any{
		"ts":          time.Now().UTC().Format(time.RFC3339Nano),
		"level":       "error",
		"component":   "service",
		"event":       "notify_dispatch_failed",
		"notify_kind": e.Kind,
		"document_id": e.DocumentID,
		"error":       err.Error(),
	}
	if b, mErr := json.Marshal(entry); mErr == nil {
		log.SetFlags(0)
		log.Println(string(b))
	}
}

func mimeAllowed(contentType string, allowed []string) bool {
	if contentType == "" {
		return false
	}
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == ct {
			return true
		}
		if prefix, ok := strings.CutSuffix(a, "/*"); ok && strings.HasPrefix(ct, prefix+"/") {
			return true
		}
	}
	return false
}

func validateTags(tags []string) error {
	if len(tags) > model.MaxTags {
		return fmt.Errorf("%w: at most %d tags allowed", ErrValidation, model.MaxTags)
	}
	for _, t := range tags {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: empty tag", ErrValidation)
		}
		if len(t) > model.MaxTagLength {
			return fmt.Errorf("%w: tag %q exceeds %d characters", ErrValidation, t, model.MaxTagLength)
		}
	}
	return nil
}

// normalizeTags trims and deduplicates while keeping first-seen order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
