package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/capitalize-ai/chat-chain/internal/model"
)

const (
	maxContentLength  = 16 * 1024
	maxMetadataKeys   = 32
	maxMetadataLength = 256
	maxKnowledgeBatch = 100
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > maxContentLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateTenantID validates a tenant ID.
func ValidateTenantID(id string) error {
	if len(id) == 0 {
		return errors.New("tenant ID cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("tenant ID exceeds maximum length")
	}
	for _, r := range id {
		if r == '.' || r == '*' || r == '>' || r == ' ' {
			return errors.New("tenant ID contains invalid characters")
		}
	}
	return nil
}

// ValidateMetadata validates conversation metadata.
func ValidateMetadata(metadata map[string]string) error {
	if len(metadata) > maxMetadataKeys {
		return errors.New("too many metadata keys")
	}
	for k, v := range metadata {
		if len(k) == 0 || len(k) > maxMetadataLength || len(v) > maxMetadataLength {
			return errors.New("metadata entry exceeds maximum length")
		}
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return errors.New("metadata must be valid UTF-8")
		}
	}
	return nil
}

// ValidateKnowledgeParts validates a knowledge ingestion batch.
func ValidateKnowledgeParts(parts []model.KnowledgePart) error {
	if len(parts) == 0 {
		return errors.New("at least one part is required")
	}
	if len(parts) > maxKnowledgeBatch {
		return errors.New("too many parts in one request")
	}
	for _, p := range parts {
		if err := ValidateMessageContent(p.Content); err != nil {
			return err
		}
	}
	return nil
}

// ValidateName validates a collection or tag name.
func ValidateName(name string) error {
	if len(name) == 0 || len(name) > 128 {
		return errors.New("name must be between 1 and 128 characters")
	}
	return nil
}
