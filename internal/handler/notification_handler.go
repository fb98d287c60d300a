package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/service"
)

const (
	defaultFailureLimit = 100
	maxFailureLimit     = 1000
)

type NotificationService interface {
	Send(ctx context.Context, kind domain.Kind, data domain.EventData, opts service.SendOptions) (domain.DispatchResult, error)
	NotifyBooking(ctx context.Context, data domain.EventData) (service.BookingNotifications, error)
	TestConnection(ctx context.Context) (domain.DispatchResult, error)
	Failures(ctx context.Context, limit int) ([]domain.FailureLogEntry, error)
	AcknowledgeFailure(ctx context.Context, correlationID string) error
	ClearFailures(ctx context.Context) error
}

// AsyncSubmitter queues a notification and returns its correlation ID.
type AsyncSubmitter interface {
	Submit(ctx context.Context, kind domain.Kind, data domain.EventData, opts service.SendOptions) (string, error)
}

type NotificationHandler struct {
	service NotificationService
	async   AsyncSubmitter
}

func NewNotificationHandler(service NotificationService, async AsyncSubmitter) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	return &NotificationHandler{service: service, async: async}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService, async AsyncSubmitter) error {
	h, err := NewNotificationHandler(service, async)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.SendNotification)
	v1.Post("/notifications/test", h.TestConnection)
	v1.Post("/bookings/notify", h.NotifyBooking)
	v1.Get("/failures", h.ListFailures)
	v1.Post("/failures/:correlationId/acknowledge", h.AcknowledgeFailure)
	v1.Delete("/failures", h.ClearFailures)

	return nil
}

type sendNotificationRequest struct {
	Kind          string           `json:"kind"`
	EventData     domain.EventData `json:"eventData"`
	CorrelationID string           `json:"correlationId"`
	Recipient     string           `json:"recipient"`
}

type notifyBookingRequest struct {
	EventData domain.EventData `json:"eventData"`
}

type acceptedResponse struct {
	CorrelationID string `json:"correlationId"`
	Status        string `json:"status"`
}

type listFailuresResponse struct {
	Data []domain.FailureLogEntry `json:"data"`
	Meta failuresMeta             `json:"meta"`
}

type failuresMeta struct {
	Limit int `json:"limit"`
	Count int `json:"count"`
}

func (h *NotificationHandler) SendNotification(c *fiber.Ctx) error {
	var req sendNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	kind, err := domain.ParseKindFromString(req.Kind)
	if err != nil {
		return toHTTPError(err)
	}
	if req.EventData == nil {
		req.EventData = domain.EventData{}
	}
	opts := service.SendOptions{
		CorrelationID: req.CorrelationID,
		Recipient:     req.Recipient,
	}

	if c.QueryBool("async") {
		if h.async == nil {
			return fiber.NewError(fiber.StatusNotImplemented, "async dispatch is not enabled")
		}
		correlationID, err := h.async.Submit(c.UserContext(), kind, req.EventData, opts)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusAccepted).JSON(acceptedResponse{
			CorrelationID: correlationID,
			Status:        "accepted",
		})
	}

	result, err := h.service.Send(c.UserContext(), kind, req.EventData, opts)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *NotificationHandler) NotifyBooking(c *fiber.Ctx) error {
	var req notifyBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.EventData) == 0 {
		return toHTTPError(fmt.Errorf("%w: eventData is required", domain.ErrValidation))
	}

	out, err := h.service.NotifyBooking(c.UserContext(), req.EventData)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(out)
}

func (h *NotificationHandler) TestConnection(c *fiber.Ctx) error {
	result, err := h.service.TestConnection(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *NotificationHandler) ListFailures(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultFailureLimit)
	if limit < 1 || limit > maxFailureLimit {
		return toHTTPError(fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxFailureLimit))
	}

	entries, err := h.service.Failures(c.UserContext(), limit)
	if err != nil {
		return toHTTPError(err)
	}
	if entries == nil {
		entries = []domain.FailureLogEntry{}
	}

	return c.Status(fiber.StatusOK).JSON(listFailuresResponse{
		Data: entries,
		Meta: failuresMeta{Limit: limit, Count: len(entries)},
	})
}

func (h *NotificationHandler) AcknowledgeFailure(c *fiber.Ctx) error {
	correlationID := strings.TrimSpace(c.Params("correlationId"))
	if err := h.service.AcknowledgeFailure(c.UserContext(), correlationID); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"correlationId": correlationID,
		"acknowledged":  true,
	})
}

func (h *NotificationHandler) ClearFailures(c *fiber.Ctx) error {
	if err := h.service.ClearFailures(c.UserContext()); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNoProviders):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrDispatcherClosed):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
