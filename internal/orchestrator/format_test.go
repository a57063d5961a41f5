package orchestrator

import (
	"strings"
	"testing"

	"github.com/nidaan-ai/triage-gateway/internal/domain"
)

func assessment(sev domain.Severity) *domain.TriageAssessment {
	return &domain.TriageAssessment{
		Condition:         "Dengue fever",
		Severity:          sev,
		Confidence:        0.8,
		RecommendedAction: "Go to a hospital for a blood test.",
		SpecialistNeeded:  "General Physician",
		RedFlags:          []string{"bleeding gums", "severe abdominal pain"},
		HomeCare:          "Drink plenty of fluids.",
	}
}

func TestFormatAlwaysEndsWithDisclaimer(t *testing.T) {
	for _, sev := range []domain.Severity{domain.SeverityEmergency, domain.SeverityUrgent, domain.SeverityRoutine} {
		got := formatTriageMessage("An explanation.", assessment(sev))
		if !strings.HasSuffix(got, disclaimer) {
			t.Errorf("%s: message does not end with disclaimer:\n%s", sev, got)
		}
	}
}

func TestFormatEmergency(t *testing.T) {
	got := formatTriageMessage("This needs immediate care.", assessment(domain.SeverityEmergency))

	if !strings.Contains(got, "🚨 EMERGENCY") {
		t.Error("missing emergency banner")
	}
	if !strings.Contains(got, "Dengue fever") {
		t.Error("missing condition")
	}
	if !strings.Contains(got, "bleeding gums") {
		t.Error("missing red flags")
	}
	// The emergency path leads with the alert, not the explanation.
	if strings.Index(got, "🚨") > strings.Index(got, "Dengue fever") {
		t.Error("banner should come first")
	}
}

func TestFormatUrgent(t *testing.T) {
	got := formatTriageMessage("Sounds like dengue.", assessment(domain.SeverityUrgent))

	if !strings.Contains(got, "⚠️") {
		t.Error("missing urgency marker")
	}
	if !strings.Contains(got, "within 24 hours") {
		t.Error("missing 24 hour window")
	}
	if !strings.Contains(got, "Sounds like dengue.") {
		t.Error("missing explanation")
	}
}

func TestFormatRoutineIncludesHomeCare(t *testing.T) {
	got := formatTriageMessage("Nothing serious.", assessment(domain.SeverityRoutine))

	if !strings.Contains(got, "Drink plenty of fluids.") {
		t.Error("missing home care advice")
	}
	if strings.Contains(got, "🚨") || strings.Contains(got, "within 24 hours") {
		t.Error("routine message should not carry escalation language")
	}
}

func TestFormatOmitsEmptyOptionalSections(t *testing.T) {
	a := assessment(domain.SeverityUrgent)
	a.RedFlags = nil
	got := formatTriageMessage("Explanation.", a)

	if strings.Contains(got, "Watch for") {
		t.Error("red flag section should be omitted when there are none")
	}
}
