package routes

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/f1-visualizer/f1-visualizer/internal/cache"
	"github.com/f1-visualizer/f1-visualizer/internal/server"
)

// RegisterCacheRoutes 暴露 /-/cache 诊断与运维接口：统计、清空与按键/模式失效。
func RegisterCacheRoutes(app *fiber.App, manager *cache.Manager) {
	if app == nil || manager == nil {
		return
	}

	app.Get("/-/cache/stats", func(c fiber.Ctx) error {
		return c.JSON(manager.Stats())
	})

	app.Delete("/-/cache", func(c fiber.Ctx) error {
		manager.Clear()
		return c.JSON(fiber.Map{"cleared": true})
	})

	app.Delete("/-/cache/entries/:key", func(c fiber.Ctx) error {
		key := strings.TrimSpace(c.Params("key"))
		if key == "" {
			return server.RenderError(c, fiber.StatusBadRequest, "key_required")
		}
		manager.Invalidate(key)
		return c.JSON(fiber.Map{"invalidated": key})
	})

	app.Post("/-/cache/invalidate", func(c fiber.Ctx) error {
		pattern := c.Query("pattern")
		if pattern == "" {
			return server.RenderError(c, fiber.StatusBadRequest, "pattern_required")
		}
		return c.JSON(fiber.Map{"removed": manager.InvalidatePattern(pattern)})
	})
}
