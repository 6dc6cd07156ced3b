package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"captionapi/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. docsHost is
// the host advertised by /swagger; empty means the request's own host.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.CaptionService, docsHost string) {
	app.Get("/", Index(svc))
	app.Get("/openapi.yaml", OpenAPISpec())
	app.Get("/docs", SwaggerUI())
	app.Get("/swagger/*", Swagger(docsHost))

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Get("/languages", ListLanguages(svc))
	app.Post("/process", ProcessImage(svc))

	captions := app.Group("/captions")
	captions.Get("/", ListCaptions(svc))
	captions.Get("/:id", GetCaption(svc))
	captions.Delete("/:id", DeleteCaption(svc))
	captions.Get("/:id/artifacts/:kind", GetArtifact(svc))
	captions.Get("/:id/artifacts/:kind/url", PresignArtifact(svc))
}
