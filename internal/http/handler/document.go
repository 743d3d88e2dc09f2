package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"labdocs/internal/model"
	"labdocs/internal/service"
)

// DocumentHandler exposes the document service over HTTP. Handlers stay thin:
// parse, delegate, translate errors.
type DocumentHandler struct {
	svc service.DocumentService
}

// NewDocumentHandler constructs a DocumentHandler.
func NewDocumentHandler(svc service.DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// HealthCheck reports readiness based on DB connectivity.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// writeServiceError translates the service error taxonomy to HTTP. Messages
// are uniform per class; internals never leak.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.Is(err, service.ErrAccessDenied):
		return writeError(c, fiber.StatusForbidden, "ACCESS_DENIED", "access denied")
	case errors.Is(err, service.ErrAlreadyLinked):
		return writeError(c, fiber.StatusConflict, "ALREADY_LINKED", "context slot already linked")
	case errors.Is(err, service.ErrNotLinked):
		return writeError(c, fiber.StatusConflict, "NOT_LINKED", "context slot not linked")
	case errors.Is(err, service.ErrDocumentTrashed):
		return writeError(c, fiber.StatusConflict, "DOCUMENT_TRASHED", "document is trashed")
	case errors.Is(err, service.ErrConflict):
		return writeError(c, fiber.StatusConflict, "CONFLICT", "conflicting concurrent modification")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func parseDocID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	}
	return id, nil
}

// Upload handles multipart document creation (field name: file, plus
// metadata form fields).
func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
	}
	defer f.Close()

	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}

	in := service.CreateInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Type:        model.DocumentType(c.FormValue("type")),
		IsPublic:    strings.EqualFold(c.FormValue("is_public"), "true"),
		Filename:    fh.Filename,
		ContentType: ct,
		Size:        fh.Size,
	}
	if tags := c.FormValue("tags"); tags != "" {
		in.Tags = strings.Split(tags, ",")
	}

	doc, err := h.svc.Create(c.UserContext(), principal, f, in)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// List handles filtered, paginated listing.
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "invalid page")
	}
	limit, err := strconv.Atoi(c.Query("limit", "10"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
	}

	f := service.ListFilter{
		Search:  c.Query("search"),
		Type:    model.DocumentType(c.Query("type")),
		OwnerID: c.Query("owner_id"),
		Trashed: strings.EqualFold(c.Query("trashed"), "true"),
	}
	if v := c.Query("created_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DATE", "invalid created_from")
		}
		f.CreatedFrom = &t
	}
	if v := c.Query("created_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DATE", "invalid created_to")
		}
		f.CreatedTo = &t
	}

	res, err := h.svc.List(c.UserContext(), principal, f, page, limit)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(res)
}

// Get returns a single document.
func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	id, err := parseDocID(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Get(c.UserContext(), principal, id, factsFrom(c, principal.ID))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(doc)
}

// Download streams the blob content.
func (h *DocumentHandler) Download(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	id, err := parseDocID(c)
	if err != nil {
		return err
	}
	rc, doc, err := h.svc.Download(c.UserContext(), principal, id, factsFrom(c, principal.ID))
	if err != nil {
		return writeServiceError(c, err)
	}
	c.Set(fiber.HeaderContentType, doc.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.Filename))
	return c.SendStream(rc, int(doc.Size))
}

// Presign returns a time-limited download URL.
func (h *DocumentHandler) Presign(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	id, err := parseDocID(c)
	if err != nil {
		return err
	}
	expiry := 15 * time.Minute
	if v := c.Query("expiry_seconds"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_EXPIRY", "invalid expiry_seconds")
		}
		expiry = time.Duration(secs) * time.Second
	}
	u, err := h.svc.PresignDownload(c.UserContext(), principal, id, factsFrom(c, principal.ID), expiry)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(fiber.Map{"url": u, "expires_in": int(expiry.Seconds())})
}

type metadataPatchBody struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Type        *string   `json:"type"`
	Tags        *[]string `json:"tags"`
	IsPublic    *bool     `json:"is_public"`
}

// UpdateMetadata applies a partial metadata update.
func (h *DocumentHandler) UpdateMetadata(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	id, err := parseDocID(c)
	if err != nil {
		return err
	}
	var body metadataPatchBody
	if err := c.BodyParser(&body); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	patch := service.MetadataPatch{
		Title:       body.Title,
		Description: body.Description,
		Tags:        body.Tags,
		IsPublic:    body.IsPublic,
	}
	if body.Type != nil {
		t := model.DocumentType(*body.Type)
		patch.Type = &t
	}
	doc, err := h.svc.UpdateMetadata(c.UserContext(), principal, id, patch)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(doc)
}

type shareBody struct {
	GranteeIDs []string `json:"grantee_ids"`
	CanEdit    bool     `json:"can_edit"`
	CanDelete  bool     `json:"can_delete"`
}

// Share upserts grants for the listed grantees.
func (h *DocumentHandler) Share(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	id, err := parseDocID(c)
	if err != nil {
		return err
	}
	var body shareBody
	if err := c.BodyParser(&body); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	grants, err := h.svc.Share(c.UserContext(), principal, id, body.GranteeIDs, body.CanEdit, body.CanDelete)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(fiber.Map{"grants": grants})
}

// Revoke removes a grant.
func (h *DocumentHandler) Revoke(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	id, err := parseDocID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Revoke(c.UserContext(), principal, id, c.Params("userId")); err != nil {
		return writeServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type linkBody struct {
	Kind     string `json:"kind"`
	EntityID string `json:"entity_id"`
}

// Link fills a context slot.
func (h *DocumentHandler) Link(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	id, err := parseDocID(c)
	if err != nil {
		return err
	}
	var body linkBody
	if err := c.BodyParser(&body); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	doc, err := h.svc.Link(c.UserContext(), principal, id, model.ContextKind(body.Kind), body.EntityID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(doc)
}

// Unlink clears one context slot (optionally checking the entity id).
func (h *DocumentHandler) Unlink(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	id, err := parseDocID(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Unlink(c.UserContext(), principal, id,
		model.ContextKind(c.Params("kind")), c.Query("entity_id"), factsFrom(c, principal.ID))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(doc)
}

// UnlinkAll clears every occupied slot.
func (h *DocumentHandler) UnlinkAll(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	id, err := parseDocID(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Unlink(c.UserContext(), principal, id, "", "", factsFrom(c, principal.ID))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(doc)
}

// Trash soft-deletes the document.
func (h *DocumentHandler) Trash(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	id, err := parseDocID(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Trash(c.UserContext(), principal, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(doc)
}

// Restore brings a trashed document back to the active state.
func (h *DocumentHandler) Restore(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	id, err := parseDocID(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Restore(c.UserContext(), principal, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(doc)
}

// Purge permanently deletes the document.
func (h *DocumentHandler) Purge(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	id, err := parseDocID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Purge(c.UserContext(), principal, id); err != nil {
		return writeServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Favorite adds the document to the caller's favorites.
func (h *DocumentHandler) Favorite(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	id, err := parseDocID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Favorite(c.UserContext(), principal, id, factsFrom(c, principal.ID)); err != nil {
		return writeServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Unfavorite removes the document from the caller's favorites.
func (h *DocumentHandler) Unfavorite(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	id, err := parseDocID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Unfavorite(c.UserContext(), principal, id); err != nil {
		return writeServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Sweep triggers the retention sweep manually.
func (h *DocumentHandler) Sweep(c *fiber.Ctx) error {
	principal, ok := principalFrom(c)
	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing identity")
	}
	n, err := h.svc.Sweep(c.UserContext(), principal)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(fiber.Map{"purged": n})
}
