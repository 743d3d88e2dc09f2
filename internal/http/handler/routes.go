package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"labdocs/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService) {
	h := NewDocumentHandler(docSvc)

	// Readiness (DB connectivity) and liveness probes.
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	app.Post("/documents", h.Upload)
	app.Get("/documents", h.List)
	app.Get("/documents/:id", h.Get)
	app.Patch("/documents/:id", h.UpdateMetadata)
	app.Delete("/documents/:id", h.Purge)

	app.Get("/documents/:id/download", h.Download)
	app.Get("/documents/:id/presign", h.Presign)

	app.Post("/documents/:id/share", h.Share)
	app.Delete("/documents/:id/share/:userId", h.Revoke)

	app.Post("/documents/:id/links", h.Link)
	app.Delete("/documents/:id/links", h.UnlinkAll)
	app.Delete("/documents/:id/links/:kind", h.Unlink)

	app.Post("/documents/:id/trash", h.Trash)
	app.Post("/documents/:id/restore", h.Restore)

	app.Put("/documents/:id/favorite", h.Favorite)
	app.Delete("/documents/:id/favorite", h.Unfavorite)

	app.Post("/admin/sweep", h.Sweep)
}
