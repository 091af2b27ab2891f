package discord

import (
	"fmt"

	"github.com/aleister1102/hostpulse/internal/common/errors"
)

// Discord API limits
const (
	maxTitleLength       = 256
	maxDescriptionLength = 4096
	maxFields            = 25
	maxFieldNameLength   = 256
	maxFieldValueLength  = 1024
	maxFooterLength      = 2048
)

// EmbedValidator validates Discord embed objects
type EmbedValidator struct{}

// NewEmbedValidator creates a new embed validator
func NewEmbedValidator() *EmbedValidator {
	return &EmbedValidator{}
}

// ValidateEmbed checks an embed against Discord's size limits
func (ev *EmbedValidator) ValidateEmbed(embed Embed) error {
	if len(embed.Title) > maxTitleLength {
		return errors.NewValidationError("title", embed.Title, "title cannot exceed 256 characters")
	}

	if len(embed.Description) > maxDescriptionLength {
		return errors.NewValidationError("description", len(embed.Description), "description cannot exceed 4096 characters")
	}

	if len(embed.Fields) > maxFields {
		return errors.NewValidationError("fields", len(embed.Fields), "cannot have more than 25 fields")
	}

	for i, field := range embed.Fields {
		if field.Name == "" || len(field.Name) > maxFieldNameLength {
			return errors.NewValidationError("field_name", field.Name, fmt.Sprintf("field %d name must be 1-256 characters", i))
		}
		if field.Value == "" || len(field.Value) > maxFieldValueLength {
			return errors.NewValidationError("field_value", field.Value, fmt.Sprintf("field %d value must be 1-1024 characters", i))
		}
	}

	if embed.Footer != nil && len(embed.Footer.Text) > maxFooterLength {
		return errors.NewValidationError("footer_text", embed.Footer.Text, "footer text cannot exceed 2048 characters")
	}

	return nil
}
