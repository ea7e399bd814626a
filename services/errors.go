package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed            = errors.New("validation failed")
	ErrPasswordTooShort            = errors.New("password is too short")
	ErrEncounterNameRequired       = errors.New("encounter name is required")
	ErrCharacterNameRequired       = errors.New("character name is required")
	ErrParticipantIdentityRequired = errors.New("participant needs a character/monster link or a display name")
	ErrCharacterInvalid            = errors.New("referenced player character does not exist")
	ErrMonsterInvalid              = errors.New("referenced monster does not exist")
	ErrInvalidFileType             = errors.New("unsupported file content type")
	ErrUploadsDisabled             = errors.New("file uploads are not configured")

	// Ошибки конфликтов
	ErrUserEmailConflict      = errors.New("email address is already in use")
	ErrUserUsernameConflict   = errors.New("username is already in use")
	ErrCharacterInUse         = errors.New("character is used by an encounter and cannot be deleted")
	ErrMonsterInUse           = errors.New("monster is used by an encounter and cannot be deleted")
	ErrConcurrentModification = errors.New("encounter was modified concurrently, retry the request")

	// Ошибки аутентификации и авторизации
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")

	// Ошибки, специфичные для сущностей
	ErrUserNotFound        = errors.New("user not found")
	ErrCharacterNotFound   = errors.New("player character not found")
	ErrMonsterNotFound     = errors.New("monster not found")
	ErrSpellNotFound       = errors.New("spell not found")
	ErrEncounterNotFound   = errors.New("encounter not found")
	ErrParticipantNotFound = errors.New("participant not found in this encounter")
)
