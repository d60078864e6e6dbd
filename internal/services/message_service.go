package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arman-d/ChatterBack/internal/models"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrMessageNotFound    = errors.New("message not found")
	ErrUploadFailed       = errors.New("upload failed")
	ErrStorageUnavailable = errors.New("storage service is not configured")
)

type messageStore interface {
	Insert(ctx context.Context, senderID int64, receiverID int64, text string, imageURL string) (*models.Message, error)
	FindConversation(ctx context.Context, userA int64, userB int64) ([]models.Message, error)
	SetPinned(ctx context.Context, messageID int64, pinned bool) (*models.Message, error)
	TogglePinned(ctx context.Context, messageID int64) (*models.Message, error)
}

type userReader interface {
	ListOthers(ctx context.Context, excludingUserID int64) ([]models.User, error)
}

type messageDispatcher interface {
	Dispatch(message *models.Message)
}

type MessageService struct {
	messageRepo messageStore
	userRepo    userReader
	storage     StorageService
	dispatcher  messageDispatcher
}

func NewMessageService(
	messageRepo messageStore,
	userRepo userReader,
	storage StorageService,
	dispatcher messageDispatcher,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		storage:     storage,
		dispatcher:  dispatcher,
	}
}

func (s *MessageService) ListSidebarUsers(ctx context.Context, requesterID int64) ([]models.User, error) {
	if requesterID <= 0 {
		return nil, ErrInvalidInput
	}
	return s.userRepo.ListOthers(ctx, requesterID)
}

func (s *MessageService) GetHistory(ctx context.Context, userA, userB int64) ([]models.Message, error) {
	if userA <= 0 || userB <= 0 {
		return nil, ErrInvalidInput
	}
	return s.messageRepo.FindConversation(ctx, userA, userB)
}

// Send persists a new message and pushes it at the receiver if online.
// The order is fixed: image upload first, then insert, then dispatch. A
// failed upload aborts before anything is written, and dispatch only
// ever sees durably stored messages.
func (s *MessageService) Send(
	ctx context.Context,
	senderID int64,
	receiverID int64,
	text string,
	image string,
) (*models.Message, error) {
	if senderID <= 0 || receiverID <= 0 {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" && image == "" {
		return nil, ErrInvalidInput
	}

	imageURL := ""
	if image != "" {
		content, ext, err := decodeBase64Image(image)
		if err != nil {
			return nil, ErrInvalidInput
		}
		if s.storage == nil {
			return nil, ErrStorageUnavailable
		}
		imageURL, err = s.storage.UploadFile(ctx, content, uuid.NewString()+ext, "messages")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
	}

	message, err := s.messageRepo.Insert(ctx, senderID, receiverID, trimmed, imageURL)
	if err != nil {
		if imageURL != "" {
			_ = s.storage.DeleteFile(ctx, imageURL)
		}
		return nil, err
	}

	s.dispatcher.Dispatch(message)

	return message, nil
}

func (s *MessageService) SetPinned(ctx context.Context, messageID int64, pinned bool) (*models.Message, error) {
	if messageID <= 0 {
		return nil, ErrInvalidInput
	}

	message, err := s.messageRepo.SetPinned(ctx, messageID, pinned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	return message, nil
}

// TogglePinned flips the pinned annotation. No push event is emitted
// for pin changes; peers pick the new state up on their next fetch.
func (s *MessageService) TogglePinned(ctx context.Context, messageID int64) (*models.Message, error) {
	if messageID <= 0 {
		return nil, ErrInvalidInput
	}

	message, err := s.messageRepo.TogglePinned(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	return message, nil
}

// decodeBase64Image accepts either a bare base64 string or a data URL
// ("data:image/png;base64,....") and returns the raw bytes plus a file
// extension derived from the declared media type.
func decodeBase64Image(image string) ([]byte, string, error) {
	encoded := image
	ext := ".bin"

	if strings.HasPrefix(image, "data:") {
		header, rest, found := strings.Cut(image, ",")
		if !found {
			return nil, "", fmt.Errorf("malformed data url")
		}
		encoded = rest

		mediaType := strings.TrimPrefix(header, "data:")
		mediaType = strings.TrimSuffix(mediaType, ";base64")
		switch mediaType {
		case "image/png":
			ext = ".png"
		case "image/jpeg", "image/jpg":
			ext = ".jpg"
		case "image/gif":
			ext = ".gif"
		case "image/webp":
			ext = ".webp"
		}
	}

	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if len(content) == 0 {
		return nil, "", fmt.Errorf("empty image")
	}

	return content, ext, nil
}
