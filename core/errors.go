package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SocialErrorBadInput         = "SOCIAL_BAD_INPUT"
	SocialErrorProviderNotFound = "SOCIAL_PROVIDER_NOT_FOUND"
	SocialErrorNotConfigured    = "SOCIAL_PROVIDER_NOT_CONFIGURED"
	SocialErrorOAuthState       = "SOCIAL_OAUTH_STATE_INVALID"
	SocialErrorOAuthExchange    = "SOCIAL_OAUTH_EXCHANGE_FAILED"
	SocialErrorUnauthenticated  = "SOCIAL_UNAUTHENTICATED"
	SocialErrorPermissionDenied = "SOCIAL_PERMISSION_DENIED"
	SocialErrorAccountNotFound  = "SOCIAL_ACCOUNT_NOT_FOUND"
	SocialErrorPublishFailed    = "SOCIAL_PUBLISH_FAILED"
	SocialErrorInternal         = "SOCIAL_INTERNAL_ERROR"
)

func socialErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureSocialErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "provider") && strings.Contains(msg, "not registered"):
		return newSocialError(err.Error(), goerrors.CategoryNotFound, SocialErrorProviderNotFound)
	case strings.Contains(msg, "not configured"):
		return newSocialError(err.Error(), goerrors.CategoryOperation, SocialErrorNotConfigured)
	case strings.Contains(msg, "oauth state"):
		return newSocialError(err.Error(), goerrors.CategoryAuth, SocialErrorOAuthState)
	case strings.Contains(msg, "token endpoint"), strings.Contains(msg, "token request"):
		return newSocialError(err.Error(), goerrors.CategoryExternal, SocialErrorOAuthExchange)
	case strings.Contains(msg, "invalid credentials"), strings.Contains(msg, "unauthenticated"):
		return newSocialError(err.Error(), goerrors.CategoryAuth, SocialErrorUnauthenticated)
	case strings.Contains(msg, "not allowed"), strings.Contains(msg, "denied"):
		return newSocialError(err.Error(), goerrors.CategoryAuthz, SocialErrorPermissionDenied)
	case strings.Contains(msg, "account") && strings.Contains(msg, "not found"):
		return newSocialError(err.Error(), goerrors.CategoryNotFound, SocialErrorAccountNotFound)
	case strings.Contains(msg, "no valid accounts"):
		return newSocialError(err.Error(), goerrors.CategoryNotFound, SocialErrorAccountNotFound)
	case strings.Contains(msg, "required"),
		strings.Contains(msg, "invalid"),
		strings.Contains(msg, "mismatch"),
		strings.Contains(msg, "exceeds"):
		return newSocialError(err.Error(), goerrors.CategoryBadInput, SocialErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureSocialErrorEnvelope(mapped)
}

func newSocialError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureSocialErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureSocialErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = socialHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultSocialTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultSocialTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return SocialErrorBadInput
	case goerrors.CategoryNotFound:
		return SocialErrorAccountNotFound
	case goerrors.CategoryAuth:
		return SocialErrorUnauthenticated
	case goerrors.CategoryAuthz:
		return SocialErrorPermissionDenied
	case goerrors.CategoryExternal:
		return SocialErrorPublishFailed
	default:
		return SocialErrorInternal
	}
}

func socialHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
