// Package keystore stores secrets in the operating system's native secret
// service behind one contract, with an encrypted file keyring for headless
// hosts. Backends are thin adapters; replace semantics, classification, and
// fallback selection live in the Store facade.
package keystore

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-hostbridge/core"
)

// Accessibility is the device-unlock condition under which a stored secret
// may be read.
type Accessibility string

const (
	AccessibilityWhenUnlocked               Accessibility = "when_unlocked"
	AccessibilityWhenUnlockedDeviceOnly     Accessibility = "when_unlocked_device_only"
	AccessibilityAfterFirstUnlock           Accessibility = "after_first_unlock"
	AccessibilityAfterFirstUnlockDeviceOnly Accessibility = "after_first_unlock_device_only"
	AccessibilityAlways                     Accessibility = "always"
	AccessibilityAlwaysDeviceOnly           Accessibility = "always_device_only"
)

func (a Accessibility) Valid() bool {
	switch a {
	case AccessibilityWhenUnlocked,
		AccessibilityWhenUnlockedDeviceOnly,
		AccessibilityAfterFirstUnlock,
		AccessibilityAfterFirstUnlockDeviceOnly,
		AccessibilityAlways,
		AccessibilityAlwaysDeviceOnly:
		return true
	}
	return false
}

// AccessPolicy declares the authentication and accessibility requirements for
// one record. It is pure data; Describe output is for audit logs only and is
// never a security boundary.
//
// Biometry without user presence is representable because some platforms
// accept it as a degenerate combination. The presets never produce it.
type AccessPolicy struct {
	RequireBiometry       bool
	RequireUserPresence   bool
	AllowPasscodeFallback bool
	Accessibility         Accessibility
}

// LowSecurity suits non-sensitive metadata only: no authentication, readable
// whenever the store is reachable.
func LowSecurity() AccessPolicy {
	return AccessPolicy{Accessibility: AccessibilityAlways}
}

func StandardSecurity() AccessPolicy {
	return AccessPolicy{
		RequireUserPresence:   true,
		AllowPasscodeFallback: true,
		Accessibility:         AccessibilityWhenUnlockedDeviceOnly,
	}
}

func HighSecurity() AccessPolicy {
	return AccessPolicy{
		RequireBiometry:     true,
		RequireUserPresence: true,
		Accessibility:       AccessibilityWhenUnlockedDeviceOnly,
	}
}

type PolicyOption func(*AccessPolicy)

func WithBiometry() PolicyOption {
	return func(p *AccessPolicy) {
		p.RequireBiometry = true
	}
}

func WithUserPresence() PolicyOption {
	return func(p *AccessPolicy) {
		p.RequireUserPresence = true
	}
}

func WithPasscodeFallback() PolicyOption {
	return func(p *AccessPolicy) {
		p.AllowPasscodeFallback = true
	}
}

func WithAccessibility(accessibility Accessibility) PolicyOption {
	return func(p *AccessPolicy) {
		p.Accessibility = accessibility
	}
}

// NewPolicy composes a custom policy from a preset base.
func NewPolicy(base AccessPolicy, opts ...PolicyOption) AccessPolicy {
	policy := base
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&policy)
	}
	return policy
}

func (p AccessPolicy) Validate() error {
	if p.Accessibility == "" {
		return core.NewBadInput("keystore: policy accessibility is required")
	}
	if !p.Accessibility.Valid() {
		return core.NewBadInput(fmt.Sprintf("keystore: unknown accessibility %q", p.Accessibility))
	}
	return nil
}

// Describe renders a human-readable summary for audit logging.
func (p AccessPolicy) Describe() string {
	parts := make([]string, 0, 4)
	switch {
	case p.RequireBiometry && p.RequireUserPresence:
		parts = append(parts, "biometry required")
	case p.RequireBiometry:
		parts = append(parts, "biometry required without presence (degenerate)")
	case p.RequireUserPresence:
		parts = append(parts, "user presence required")
	default:
		parts = append(parts, "no authentication")
	}
	if p.AllowPasscodeFallback {
		parts = append(parts, "passcode fallback allowed")
	} else if p.RequireBiometry || p.RequireUserPresence {
		parts = append(parts, "no passcode fallback")
	}
	parts = append(parts, "accessible "+strings.ReplaceAll(string(p.Accessibility), "_", " "))
	return strings.Join(parts, ", ")
}
