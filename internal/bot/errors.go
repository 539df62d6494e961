package bot

import (
	"errors"

	"realtyhub/internal/domain"
)

func (b *Bot) getErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, domain.ErrUnauthorized) {
		return "That link token is invalid or expired. Request a new one from your account page."
	}

	if errors.Is(err, domain.ErrNotFound) {
		return "This chat is not linked yet. Send /start <token> to link it."
	}

	if errors.Is(err, domain.ErrRateLimited) {
		return "You are sending messages too fast. Please wait a moment."
	}

	return "Something went wrong while handling your request. Please try again later."
}
