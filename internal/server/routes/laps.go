package routes

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/f1-visualizer/f1-visualizer/internal/laps"
	"github.com/f1-visualizer/f1-visualizer/internal/server"
	"github.com/f1-visualizer/f1-visualizer/internal/table"
)

// RegisterLapRoutes 暴露 /api 下的 lap 数据接口。
func RegisterLapRoutes(app *fiber.App, svc *laps.Service, logger *logrus.Logger) {
	if app == nil || svc == nil {
		return
	}

	app.Get("/api/seasons", func(c fiber.Ctx) error {
		seasons, err := svc.Seasons()
		if err != nil {
			return renderLapError(c, logger, err)
		}
		return c.JSON(fiber.Map{"seasons": seasons})
	})

	app.Get("/api/laps/:season/:session", func(c fiber.Ctx) error {
		season, err := strconv.Atoi(c.Params("season"))
		if err != nil {
			return server.RenderError(c, fiber.StatusBadRequest, "invalid_season")
		}
		frame, err := svc.Laps(season, c.Params("session"))
		if err != nil {
			return renderLapError(c, logger, err)
		}
		return c.JSON(encodeFrame(frame))
	})

	app.Post("/api/laps/:season/:session/gap/:driver", func(c fiber.Ctx) error {
		season, err := strconv.Atoi(c.Params("season"))
		if err != nil {
			return server.RenderError(c, fiber.StatusBadRequest, "invalid_season")
		}
		frame, err := svc.AddGap(season, c.Params("session"), c.Params("driver"))
		if err != nil {
			return renderLapError(c, logger, err)
		}
		return c.JSON(encodeFrame(frame))
	})
}

type framePayload struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

func encodeFrame(frame *table.Frame) framePayload {
	return framePayload{Columns: frame.Names(), Rows: frame.Rows()}
}

func renderLapError(c fiber.Ctx, logger *logrus.Logger, err error) error {
	switch {
	case errors.Is(err, laps.ErrUnknownSession):
		return server.RenderError(c, fiber.StatusBadRequest, "unknown_session")
	case errors.Is(err, laps.ErrMissingColumn):
		return server.RenderError(c, fiber.StatusBadRequest, "missing_column")
	case errors.Is(err, laps.ErrNotFound):
		return server.RenderError(c, fiber.StatusNotFound, "laps_not_found")
	case errors.Is(err, laps.ErrUnknownDriver):
		return server.RenderError(c, fiber.StatusNotFound, "driver_not_found")
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"action":     "laps_request",
			"request_id": server.RequestID(c),
			"path":       c.Path(),
		}).WithError(err).Error("lap request failed")
	}
	return server.RenderError(c, fiber.StatusInternalServerError, "internal_error")
}
