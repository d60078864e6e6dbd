package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/arman-d/ChatterBack/internal/dispatch"
	"github.com/arman-d/ChatterBack/internal/models"
	"github.com/arman-d/ChatterBack/internal/presence"
	"github.com/arman-d/ChatterBack/internal/services"
	"github.com/arman-d/ChatterBack/internal/ws"
	"github.com/arman-d/ChatterBack/pkg/utils"
)

type messageApplicationService interface {
	ListSidebarUsers(ctx context.Context, requesterID int64) ([]models.User, error)
	GetHistory(ctx context.Context, userA int64, userB int64) ([]models.Message, error)
	Send(ctx context.Context, senderID int64, receiverID int64, text string, image string) (*models.Message, error)
	SetPinned(ctx context.Context, messageID int64, pinned bool) (*models.Message, error)
	TogglePinned(ctx context.Context, messageID int64) (*models.Message, error)
}

type MessageHandler struct {
	service    messageApplicationService
	registry   *presence.Registry
	dispatcher *dispatch.Dispatcher
	jwtSecret  string
}

type sendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func NewMessageHandler(
	service messageApplicationService,
	registry *presence.Registry,
	dispatcher *dispatch.Dispatcher,
	jwtSecret string,
) *MessageHandler {
	return &MessageHandler{
		service:    service,
		registry:   registry,
		dispatcher: dispatcher,
		jwtSecret:  jwtSecret,
	}
}

func (h *MessageHandler) ListSidebarUsers(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	users, err := h.service.ListSidebarUsers(c.Context(), userID)
	if err != nil {
		return mapMessageError(c, err)
	}

	for i := range users {
		users[i].Online = h.registry.Online(users[i].ID)
	}

	return c.JSON(users)
}

func (h *MessageHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	peerID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || peerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	messages, err := h.service.GetHistory(c.Context(), userID, peerID)
	if err != nil {
		return mapMessageError(c, err)
	}

	return c.JSON(messages)
}

func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	receiverID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || receiverID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.Send(c.Context(), userID, receiverID, req.Text, req.Image)
	if err != nil {
		return mapMessageError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(message)
}

// TogglePin is the canonical pin surface: each call flips the flag and
// returns the updated message.
func (h *MessageHandler) TogglePin(c *fiber.Ctx) error {
	messageID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || messageID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message id"})
	}

	message, err := h.service.TogglePinned(c.Context(), messageID)
	if err != nil {
		return mapMessageError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Pin status updated",
		"updated": message,
	})
}

// ForcePin sets pinned=true unconditionally. Deprecated in favor of
// TogglePin; kept so older clients that PUT /messages/pin/:id keep
// working.
func (h *MessageHandler) ForcePin(c *fiber.Ctx) error {
	messageID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || messageID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message id"})
	}

	message, err := h.service.SetPinned(c.Context(), messageID, true)
	if err != nil {
		return mapMessageError(c, err)
	}

	return c.JSON(message)
}

func (h *MessageHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	return c.Next()
}

func (h *MessageHandler) HandleWebSocket(conn *websocket.Conn) {
	userIDStr, _ := conn.Locals("user_id").(string)
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID <= 0 {
		_ = conn.Close()
		return
	}

	client := ws.NewClient(conn, h.registry, h.dispatcher, userID)
	go client.WritePump()
	client.ReadPump()
}

func (h *MessageHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func mapMessageError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message must include text or an image"})
	case errors.Is(err, services.ErrMessageNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Message not found"})
	case errors.Is(err, services.ErrUploadFailed), errors.Is(err, services.ErrStorageUnavailable):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload image"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
