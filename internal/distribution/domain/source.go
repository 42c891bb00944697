// Package domain holds the distribution engine's value types. It is
// dependency-free so both the service layer and tests can share it.
package domain

import "strings"

// SourceType classifies a lead's free-text source field.
type SourceType string

const (
	SourceWhatsApp SourceType = "whatsapp"
	SourceFacebook SourceType = "facebook"
	SourceWebhook  SourceType = "webhook"
	SourceOther    SourceType = "other"

	// SourceAll marks a catch-all distribution config.
	SourceAll SourceType = "all"
)

// ClassifySource maps a lead's raw source string to a SourceType using
// case-insensitive substring matching. Unmatched sources are "other".
func ClassifySource(raw string) SourceType {
	source := strings.ToLower(strings.TrimSpace(raw))

	switch {
	case strings.Contains(source, "whatsapp"):
		return SourceWhatsApp
	case strings.Contains(source, "facebook"):
		return SourceFacebook
	case strings.Contains(source, "webhook"):
		return SourceWebhook
	default:
		return SourceOther
	}
}

// TriggerSource identifies what caused a distribution invocation.
type TriggerSource string

const (
	TriggerNewLead            TriggerSource = "new_lead"
	TriggerWhatsApp           TriggerSource = "whatsapp"
	TriggerFacebook           TriggerSource = "facebook"
	TriggerWebhook            TriggerSource = "webhook"
	TriggerManual             TriggerSource = "manual"
	TriggerAutoRedistribution TriggerSource = "auto_redistribution"
)

// Canonical maps a trigger source to the trigger name stored on configs.
// Channel-specific new-lead triggers all collapse into "new_lead".
func (t TriggerSource) Canonical() string {
	switch t {
	case TriggerManual:
		return "manual"
	case TriggerAutoRedistribution:
		return "auto_redistribution"
	default:
		return "new_lead"
	}
}

// Valid reports whether the trigger source is one of the known values.
func (t TriggerSource) Valid() bool {
	switch t {
	case TriggerNewLead, TriggerWhatsApp, TriggerFacebook, TriggerWebhook, TriggerManual, TriggerAutoRedistribution:
		return true
	}
	return false
}
