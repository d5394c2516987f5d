package keystore

import (
	"strings"
	"testing"

	"github.com/goliatone/go-hostbridge/core"
)

func TestAccessPolicy_Presets(t *testing.T) {
	low := LowSecurity()
	if low.RequireBiometry || low.RequireUserPresence || low.AllowPasscodeFallback {
		t.Fatalf("low security must not require authentication: %+v", low)
	}
	if low.Accessibility != AccessibilityAlways {
		t.Fatalf("low security accessibility: %v", low.Accessibility)
	}

	standard := StandardSecurity()
	if !standard.RequireUserPresence || standard.RequireBiometry {
		t.Fatalf("standard security must require presence without biometry: %+v", standard)
	}
	if !standard.AllowPasscodeFallback {
		t.Fatalf("standard security allows passcode fallback")
	}
	if standard.Accessibility != AccessibilityWhenUnlockedDeviceOnly {
		t.Fatalf("standard security accessibility: %v", standard.Accessibility)
	}

	high := HighSecurity()
	if !high.RequireBiometry || !high.RequireUserPresence {
		t.Fatalf("high security must require biometry and presence: %+v", high)
	}
	if high.AllowPasscodeFallback {
		t.Fatalf("high security must not allow passcode fallback")
	}
}

func TestAccessPolicy_BuilderComposesFromBase(t *testing.T) {
	policy := NewPolicy(LowSecurity(),
		WithUserPresence(),
		WithAccessibility(AccessibilityAfterFirstUnlockDeviceOnly),
	)
	if !policy.RequireUserPresence {
		t.Fatalf("expected user presence to be set")
	}
	if policy.Accessibility != AccessibilityAfterFirstUnlockDeviceOnly {
		t.Fatalf("unexpected accessibility: %v", policy.Accessibility)
	}
	if policy.RequireBiometry {
		t.Fatalf("builder must not invent biometry")
	}
}

func TestAccessPolicy_ValidateRejectsUnknownAccessibility(t *testing.T) {
	policy := AccessPolicy{Accessibility: "sometimes"}
	err := policy.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !core.IsBadInput(err) {
		t.Fatalf("expected bad input classification, got %v", err)
	}
	if err := (AccessPolicy{}).Validate(); err == nil {
		t.Fatalf("expected empty accessibility to be rejected")
	}
}

func TestAccessPolicy_DescribeIsAuditTextOnly(t *testing.T) {
	cases := []struct {
		name   string
		policy AccessPolicy
		want   string
	}{
		{"high", HighSecurity(), "biometry required"},
		{"standard", StandardSecurity(), "passcode fallback allowed"},
		{"low", LowSecurity(), "no authentication"},
		{"degenerate", AccessPolicy{RequireBiometry: true, Accessibility: AccessibilityAlways}, "degenerate"},
	}
	for _, tc := range cases {
		summary := tc.policy.Describe()
		if !strings.Contains(summary, tc.want) {
			t.Fatalf("%s: expected %q in %q", tc.name, tc.want, summary)
		}
	}
}
