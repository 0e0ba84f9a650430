package routes

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/f1-visualizer/f1-visualizer/internal/cache"
	"github.com/f1-visualizer/f1-visualizer/internal/producer"
	"github.com/f1-visualizer/f1-visualizer/internal/server"
)

// MemoClearers 按生产者键提供进程内缓存的清理函数，用于 KindMemo 生产者。
type MemoClearers map[string]func()

// RegisterProducerRoutes 暴露 /-/producers 诊断接口，列出生产者并按生产者失效缓存。
func RegisterProducerRoutes(app *fiber.App, manager *cache.Manager, memos MemoClearers) {
	if app == nil || manager == nil {
		return
	}

	app.Get("/-/producers", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"producers": encodeProducers(producer.List())})
	})

	app.Post("/-/producers/:key/invalidate", func(c fiber.Ctx) error {
		key := strings.ToLower(strings.TrimSpace(c.Params("key")))
		meta, ok := producer.Resolve(key)
		if !ok {
			return server.RenderError(c, fiber.StatusNotFound, "producer_not_found")
		}

		removed := 0
		if meta.Kind == producer.KindMemo {
			if reset, ok := memos[meta.Key]; ok {
				reset()
			}
		} else {
			removed = manager.InvalidatePattern(meta.Pattern())
		}
		return c.JSON(fiber.Map{"producer": meta.Key, "removed": removed})
	})
}

type producerPayload struct {
	producer.Metadata
	Pattern string `json:"pattern"`
}

func encodeProducers(items []producer.Metadata) []producerPayload {
	result := make([]producerPayload, 0, len(items))
	for _, meta := range items {
		result = append(result, producerPayload{Metadata: meta, Pattern: meta.Pattern()})
	}
	return result
}
