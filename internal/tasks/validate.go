package tasks

import (
	"strings"

	"creativemind-api/internal/providers"
	"creativemind-api/internal/shared"
)

// validate enforces capability-specific input rules before any provider
// call. A rejection here costs nothing: no upstream request, no credit
// risk. Returns the normalized input (speech text is trimmed).
func validate(capability providers.Capability, input *Input) *shared.RequestError {
	switch capability {
	case providers.CapabilityImageGeneration:
		if strings.TrimSpace(input.Prompt) == "" {
			return shared.InvalidInput("prompt is required")
		}

	case providers.CapabilityTextToSpeech:
		trimmed := strings.TrimSpace(input.Text)
		if trimmed == "" {
			return shared.InvalidInput("text cannot be empty")
		}
		if len([]rune(trimmed)) > shared.MaxSpeechTextLength {
			return shared.InvalidInput("maximum 500 characters allowed")
		}
		input.Text = trimmed

	case providers.CapabilityBackgroundRemoval:
		if len(input.Image) == 0 {
			return shared.InvalidInput("no image file provided")
		}
		if len(input.Image) > shared.MaxUploadBytes {
			return shared.InvalidInput("file size too large, maximum size is 5MB")
		}
		if !strings.HasPrefix(input.ImageMIME, "image/") {
			return shared.InvalidInput("not an image, please upload an image")
		}

	case providers.CapabilityChatCompletion:
		if len(input.Messages) == 0 {
			return shared.InvalidInput("messages are required")
		}
		for _, msg := range input.Messages {
			if msg.Role == "" || msg.Content == "" {
				return shared.InvalidInput("messages must have a role and content")
			}
		}

	default:
		return shared.InvalidInput("unknown capability")
	}

	return nil
}
