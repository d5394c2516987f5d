package core

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	BridgeErrorInvalidHandle      = "BRIDGE_INVALID_HANDLE"
	BridgeErrorStorageUnavailable = "BRIDGE_STORAGE_UNAVAILABLE"
	BridgeErrorNotFound           = "BRIDGE_NOT_FOUND"
	BridgeErrorAccessDenied       = "BRIDGE_ACCESS_DENIED"
	BridgeErrorDuplicateItem      = "BRIDGE_DUPLICATE_ITEM"
	BridgeErrorBadInput           = "BRIDGE_BAD_INPUT"
	BridgeErrorBackendFailure     = "BRIDGE_BACKEND_ERROR"
)

func NewInvalidHandle(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryNotFound).
		WithTextCode(BridgeErrorInvalidHandle)
}

func NewNotFound(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryNotFound).
		WithTextCode(BridgeErrorNotFound)
}

func NewStorageUnavailable(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryExternal).
		WithTextCode(BridgeErrorStorageUnavailable)
}

func WrapStorageUnavailable(err error, message string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, message).
		WithTextCode(BridgeErrorStorageUnavailable)
}

func NewAccessDenied(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(BridgeErrorAccessDenied)
}

func WrapAccessDenied(err error, message string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryAuth, message).
		WithTextCode(BridgeErrorAccessDenied)
}

func NewDuplicateItem(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryConflict).
		WithTextCode(BridgeErrorDuplicateItem)
}

func NewBadInput(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode(BridgeErrorBadInput)
}

func NewBackendError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryExternal).
		WithTextCode(BridgeErrorBackendFailure)
}

// WrapBackendError preserves the OS-level failure message for diagnostics
// while presenting a stable text code to callers.
func WrapBackendError(err error, message string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, message).
		WithTextCode(BridgeErrorBackendFailure)
}

// TextCode extracts the bridge text code from a classified error, or returns
// an empty string for plain errors.
func TextCode(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return strings.TrimSpace(richErr.TextCode)
	}
	return ""
}

func IsInvalidHandle(err error) bool {
	return TextCode(err) == BridgeErrorInvalidHandle
}

func IsNotFound(err error) bool {
	return TextCode(err) == BridgeErrorNotFound
}

func IsStorageUnavailable(err error) bool {
	return TextCode(err) == BridgeErrorStorageUnavailable
}

func IsAccessDenied(err error) bool {
	return TextCode(err) == BridgeErrorAccessDenied
}

func IsDuplicateItem(err error) bool {
	return TextCode(err) == BridgeErrorDuplicateItem
}

func IsBadInput(err error) bool {
	return TextCode(err) == BridgeErrorBadInput
}

func IsBackendError(err error) bool {
	return TextCode(err) == BridgeErrorBackendFailure
}
