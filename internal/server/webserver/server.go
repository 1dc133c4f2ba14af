// Package webserver serves the browser board controller. The page itself
// talks to the REST API, whose address it learns from /config.
package webserver

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/rs/zerolog"
)

//go:embed web
var webFS embed.FS

// New builds the web UI app; apiURL is handed to the page through /config
func New(apiURL string, log zerolog.Logger) (*fiber.App, error) {
	webContent, err := fs.Sub(webFS, "web")
	if err != nil {
		return nil, fmt.Errorf("failed to create web sub-filesystem: %w", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           30 * time.Second,
		DisableStartupMessage: true,
	})

	app.Use(logger.New(logger.Config{
		Format: "${status} ${method} ${path} ${latency}\n",
		Output: log.With().Str("component", "web").Logger(),
	}))
	app.Use(cors.New())

	// Served before the static handler
	app.Get("/config", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"apiUrl": apiURL,
		})
	})

	// Unknown paths fall back to the page itself
	app.Use("/", filesystem.New(filesystem.Config{
		Root:         http.FS(webContent),
		Index:        "index.html",
		NotFoundFile: "index.html",
	}))

	return app, nil
}
