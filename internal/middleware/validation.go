package middleware

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/titi-ai/titi/internal/mode"
	"github.com/titi-ai/titi/internal/model"
)

// Request size limits.
const (
	MaxSelectionBytes      = 200_000
	MaxInstructionBytes    = 20_000
	MaxConversationIDBytes = 128
	MaxRequestBodyBytes    = MaxSelectionBytes + MaxInstructionBytes + 4096
)

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateTitiRequest checks sizes, encoding and mode. The conversation ID
// is never rejected: an oversized or non-UTF-8 id is cleared, and unknown
// ids start a new conversation.
func ValidateTitiRequest(req *model.TitiRequest) error {
	if err := validateText("selection", req.Selection, MaxSelectionBytes); err != nil {
		return err
	}
	if err := validateText("instruction", req.Instruction, MaxInstructionBytes); err != nil {
		return err
	}
	if validateText("conversation_id", req.ConversationID, MaxConversationIDBytes) != nil {
		req.ConversationID = ""
	}
	if _, err := mode.Parse(req.Mode); err != nil {
		return err
	}
	return nil
}

func validateText(field, value string, max int) error {
	if len(value) > max {
		return fmt.Errorf("%s exceeds maximum length", field)
	}
	if !utf8.ValidString(value) {
		return fmt.Errorf("%s must be valid UTF-8", field)
	}
	return nil
}
