package inbound

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-social/core"
)

func inboundError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundBadInput(message string, metadata map[string]any) error {
	return inboundError(
		message,
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		core.SocialErrorBadInput,
		metadata,
	)
}

func inboundInternal(message string, metadata map[string]any) error {
	return inboundError(
		message,
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		core.SocialErrorInternal,
		metadata,
	)
}

// returnPathFromError pulls the verified return path a callback failure was
// tagged with, or "" when the error predates state verification.
func returnPathFromError(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return ""
	}
	path, _ := rich.Metadata["return_path"].(string)
	return strings.TrimSpace(path)
}

// statusFromError resolves the HTTP status for a handler failure. Rich
// errors carry their own code; anything else is an internal error.
func statusFromError(err error) (int, string) {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		code := rich.Code
		if code == 0 {
			code = http.StatusInternalServerError
		}
		textCode := rich.TextCode
		if textCode == "" {
			textCode = core.SocialErrorInternal
		}
		return code, textCode
	}
	return http.StatusInternalServerError, core.SocialErrorInternal
}
