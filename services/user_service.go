package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/questforge/dm-companion/models"
	"github.com/questforge/dm-companion/repositories"
	"github.com/questforge/dm-companion/storage"
)

type UpdateProfileInput struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

type UserService interface {
	GetProfile(ctx context.Context, userID int) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int, input UpdateProfileInput) (*models.User, error)
	UploadAvatar(ctx context.Context, userID int, file io.Reader, contentType string) (*models.User, error)
	DeleteAccount(ctx context.Context, userID int) error
}

type userService struct {
	userRepo repositories.UserRepository
	uploader storage.FileUploader
	logger   *slog.Logger
}

func NewUserService(userRepo repositories.UserRepository, uploader storage.FileUploader, logger *slog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		uploader: uploader,
		logger:   logger,
	}
}

func (s *userService) GetProfile(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	user.PasswordHash = ""
	populateUserAvatarURLFunc(user, s.uploader)
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID int, input UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, ErrValidationFailed
		}
		user.Username = username
	}
	if input.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*input.Email))
		if email == "" {
			return nil, ErrValidationFailed
		}
		user.Email = email
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserEmailConflict):
			return nil, ErrUserEmailConflict
		case errors.Is(err, repositories.ErrUserUsernameConflict):
			return nil, ErrUserUsernameConflict
		case errors.Is(err, repositories.ErrUserNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user %d: %w", userID, err)
	}

	user.PasswordHash = ""
	populateUserAvatarURLFunc(user, s.uploader)
	return user, nil
}

func (s *userService) UploadAvatar(ctx context.Context, userID int, file io.Reader, contentType string) (*models.User, error) {
	if s.uploader == nil {
		return nil, ErrUploadsDisabled
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, ErrInvalidFileType
	}

	key := fmt.Sprintf("avatars/users/%d/%s%s", userID, uuid.NewString(), ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload avatar for user %d: %w", userID, err)
	}

	oldKey := user.AvatarKey
	if err := s.userRepo.UpdateAvatarKey(ctx, userID, &key); err != nil {
		// Запись не обновилась — убираем уже загруженный объект.
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to delete orphaned avatar object",
				slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, fmt.Errorf("failed to store avatar key for user %d: %w", userID, err)
	}

	if oldKey != nil && *oldKey != "" && *oldKey != key {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.Warn("failed to delete previous avatar object",
				slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	user.AvatarKey = &key
	user.PasswordHash = ""
	populateUserAvatarURLFunc(user, s.uploader)
	return user, nil
}

func (s *userService) DeleteAccount(ctx context.Context, userID int) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user %d: %w", userID, err)
	}

	if s.uploader != nil && user.AvatarKey != nil && *user.AvatarKey != "" {
		if delErr := s.uploader.Delete(ctx, *user.AvatarKey); delErr != nil {
			s.logger.Warn("failed to delete avatar of removed user",
				slog.String("key", *user.AvatarKey), slog.Any("error", delErr))
		}
	}
	return nil
}
