package services

import (
	"fmt"
	"strings"

	"github.com/questforge/dm-companion/models"
	"github.com/questforge/dm-companion/storage"
)

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func populateUserAvatarURLFunc(user *models.User, uploader storage.FileUploader) {
	if user != nil && user.AvatarKey != nil && *user.AvatarKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*user.AvatarKey)
		if url != "" {
			user.AvatarURL = &url
		}
	}
}

func populateCharacterPortraitURLFunc(character *models.PlayerCharacter, uploader storage.FileUploader) {
	if character != nil && character.PortraitKey != nil && *character.PortraitKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*character.PortraitKey)
		if url != "" {
			character.PortraitURL = &url
		}
	}
}

// GetExtensionFromContentType подбирает расширение файла по Content-Type загрузки.
func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		parts := strings.Split(contentType, "/")
		if len(parts) == 2 && strings.HasPrefix(parts[0], "image") && parts[1] != "" {
			ext := "." + strings.Split(parts[1], "+")[0]
			return ext, nil
		}
		return "", fmt.Errorf("could not determine file extension from content type: '%s'", contentType)
	}
}
