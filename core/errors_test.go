package core

import (
	stderrors "errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestErrors_ConstructorsAssignStableTextCodes(t *testing.T) {
	cases := []struct {
		err      error
		textCode string
		category goerrors.Category
	}{
		{NewInvalidHandle("no such wallet"), BridgeErrorInvalidHandle, goerrors.CategoryNotFound},
		{NewNotFound("no record"), BridgeErrorNotFound, goerrors.CategoryNotFound},
		{NewStorageUnavailable("service down"), BridgeErrorStorageUnavailable, goerrors.CategoryExternal},
		{NewAccessDenied("user cancelled prompt"), BridgeErrorAccessDenied, goerrors.CategoryAuth},
		{NewDuplicateItem("record exists"), BridgeErrorDuplicateItem, goerrors.CategoryConflict},
		{NewBadInput("service is required"), BridgeErrorBadInput, goerrors.CategoryBadInput},
		{NewBackendError("keychain write failed"), BridgeErrorBackendFailure, goerrors.CategoryExternal},
	}
	for _, tc := range cases {
		if got := TextCode(tc.err); got != tc.textCode {
			t.Fatalf("expected text code %q, got %q", tc.textCode, got)
		}
		var richErr *goerrors.Error
		if !goerrors.As(tc.err, &richErr) {
			t.Fatalf("expected go-errors type for %v", tc.err)
		}
		if richErr.Category != tc.category {
			t.Fatalf("expected category %q for %q, got %q", tc.category, tc.textCode, richErr.Category)
		}
	}
}

func TestErrors_WrapPreservesCauseAndCode(t *testing.T) {
	cause := stderrors.New("dbus: connection refused")
	wrapped := WrapStorageUnavailable(cause, "secret service unreachable")

	if !IsStorageUnavailable(wrapped) {
		t.Fatalf("expected storage unavailable classification, got %v", wrapped)
	}
	if !stderrors.Is(wrapped, cause) {
		t.Fatalf("wrapping must preserve the cause chain")
	}

	denied := WrapAccessDenied(fmt.Errorf("keychain: errSecAuthFailed"), "authentication failed")
	if !IsAccessDenied(denied) {
		t.Fatalf("expected access denied classification, got %v", denied)
	}
	backend := WrapBackendError(cause, "list failed")
	if !IsBackendError(backend) {
		t.Fatalf("expected backend classification, got %v", backend)
	}
}

func TestErrors_ClassifiersRejectForeignErrors(t *testing.T) {
	plain := stderrors.New("plain failure")
	if TextCode(plain) != "" {
		t.Fatalf("plain errors carry no text code")
	}
	if IsNotFound(plain) || IsStorageUnavailable(plain) || IsAccessDenied(plain) ||
		IsDuplicateItem(plain) || IsBadInput(plain) || IsInvalidHandle(plain) || IsBackendError(plain) {
		t.Fatalf("plain errors must not classify")
	}
	if TextCode(nil) != "" || IsNotFound(nil) {
		t.Fatalf("nil must not classify")
	}
}

func TestErrors_ClassifiersSeeThroughWrapping(t *testing.T) {
	inner := NewNotFound("no record for vault/alice")
	outer := fmt.Errorf("keystore: retrieve: %w", inner)
	if !IsNotFound(outer) {
		t.Fatalf("classification must survive fmt.Errorf wrapping")
	}
	if IsAccessDenied(outer) {
		t.Fatalf("wrong classifier matched wrapped error")
	}
}
