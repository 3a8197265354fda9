package validation

import (
	"regexp"
	"strings"

	"chatcore/internal/errors"
)

var chatIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateChatID checks that a chat identifier matches the allowed
// character set used for both label keys and WS command payloads.
func ValidateChatID(id string) error {
	if id == "" {
		return errors.New(errors.ErrMissingRequiredField, "chat_id is required")
	}
	if !chatIDPattern.MatchString(id) {
		return errors.New(
			errors.ErrInvalidChatID,
			"chat_id must contain only alphanumeric characters, hyphens, and underscores",
		)
	}
	return nil
}

// ValidateMessageText validates a user message body before it is
// appended to the DAG.
func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New(errors.ErrMissingRequiredField, "text is required")
	}
	if len(text) > 16000 {
		return errors.NewWithDetails(
			errors.ErrValidationFailed,
			"message exceeds maximum length",
			map[string]interface{}{"max_length": 16000, "actual": len(text)},
		)
	}
	return nil
}

// ValidateModelID checks that a model identifier is present, returning a
// MISSING_REQUIRED_FIELD error for an empty value. It does not consult
// the Provider Registry; unknown-model detection is left to the caller
// (which has access to the registry and can produce a NOT_FOUND error).
func ValidateModelID(modelID string) error {
	if strings.TrimSpace(modelID) == "" {
		return errors.New(errors.ErrMissingRequiredField, "model_id is required")
	}
	return nil
}

// SanitizeString strips control characters from user-supplied text,
// preserving newlines, carriage returns, and tabs.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, input)
}
