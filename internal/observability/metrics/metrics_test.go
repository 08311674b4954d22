package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("org_id", "123"),
		attribute.String("user_id", "456"),
		attribute.String("reason", "organization_mismatch"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "org_id" && attrs[1].Key != "org_id" {
		t.Fatalf("expected org_id to be retained")
	}
	if attrs[0].Key != "reason" && attrs[1].Key != "reason" {
		t.Fatalf("expected reason to be retained")
	}
}

func TestDecisionLabel(t *testing.T) {
	if got := decisionLabel(true); got != "allow" {
		t.Fatalf("expected allow, got %q", got)
	}
	if got := decisionLabel(false); got != "deny" {
		t.Fatalf("expected deny, got %q", got)
	}
}
