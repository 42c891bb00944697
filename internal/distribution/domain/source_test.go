package domain

import "testing"

func TestClassifySourceMatchesKnownChannelsBySubstring(t *testing.T) {
	cases := []struct {
		raw  string
		want SourceType
	}{
		{"whatsapp", SourceWhatsApp},
		{"WhatsApp Business", SourceWhatsApp},
		{"  facebook_ads  ", SourceFacebook},
		{"Facebook Lead Form", SourceFacebook},
		{"webhook", SourceWebhook},
		{"site-webhook-v2", SourceWebhook},
		{"indicacao", SourceOther},
		{"", SourceOther},
		{"google ads", SourceOther},
	}

	for _, tc := range cases {
		if got := ClassifySource(tc.raw); got != tc.want {
			t.Fatalf("ClassifySource(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestTriggerSourceCanonicalCollapsesChannelTriggers(t *testing.T) {
	cases := []struct {
		trigger TriggerSource
		want    string
	}{
		{TriggerNewLead, "new_lead"},
		{TriggerWhatsApp, "new_lead"},
		{TriggerFacebook, "new_lead"},
		{TriggerWebhook, "new_lead"},
		{TriggerManual, "manual"},
		{TriggerAutoRedistribution, "auto_redistribution"},
	}

	for _, tc := range cases {
		if got := tc.trigger.Canonical(); got != tc.want {
			t.Fatalf("Canonical(%q) = %q, want %q", tc.trigger, got, tc.want)
		}
	}
}

func TestTriggerSourceValidRejectsUnknownValues(t *testing.T) {
	if TriggerSource("bulk_import").Valid() {
		t.Fatal("expected unknown trigger source to be invalid")
	}
	if !TriggerManual.Valid() {
		t.Fatal("expected manual trigger source to be valid")
	}
}

func TestConfigAllowsTrigger(t *testing.T) {
	config := DistributionConfig{Triggers: []string{"new_lead", "auto_redistribution"}}

	if !config.AllowsTrigger("new_lead") {
		t.Fatal("expected new_lead to be allowed")
	}
	if config.AllowsTrigger("manual") {
		t.Fatal("expected manual to be disabled")
	}
}
