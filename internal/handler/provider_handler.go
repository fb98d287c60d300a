package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/service"
)

type ProviderAdmin interface {
	Providers() []service.ProviderStatus
	Reload(ctx context.Context) ([]service.ProviderStatus, error)
}

type ProviderHandler struct {
	admin ProviderAdmin
}

func RegisterProviderRoutes(router fiber.Router, admin ProviderAdmin) error {
	if admin == nil {
		return fmt.Errorf("provider admin is required")
	}
	h := &ProviderHandler{admin: admin}

	v1 := router.Group("/v1")
	v1.Get("/providers", h.ListProviders)
	v1.Post("/providers/reload", h.ReloadProviders)

	return nil
}

func (h *ProviderHandler) ListProviders(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": h.admin.Providers(),
	})
}

func (h *ProviderHandler) ReloadProviders(c *fiber.Ctx) error {
	statuses, err := h.admin.Reload(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": statuses,
	})
}
