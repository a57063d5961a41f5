package orchestrator

import (
	"fmt"
	"strings"

	"github.com/nidaan-ai/triage-gateway/internal/domain"
)

// disclaimer is appended to every formatted triage message, regardless of
// severity.
const disclaimer = "Please remember: I am an assistant, not a doctor. Always consult a qualified medical professional."

// formatTriageMessage renders an assessment as a severity-keyed message.
// The clause ordering per severity is fixed: the condition statement always
// comes first.
func formatTriageMessage(explanation string, a *domain.TriageAssessment) string {
	var b strings.Builder

	switch a.Severity {
	case domain.SeverityEmergency:
		fmt.Fprintf(&b, "🚨 EMERGENCY: This may be %s.\n\n", a.Condition)
		fmt.Fprintf(&b, "%s\n", a.RecommendedAction)
		fmt.Fprintf(&b, "Specialist needed: %s.\n", a.SpecialistNeeded)
		writeRedFlags(&b, a.RedFlags)

	case domain.SeverityUrgent:
		fmt.Fprintf(&b, "⚠️ This looks like %s.\n\n", a.Condition)
		if explanation != "" {
			fmt.Fprintf(&b, "%s\n", explanation)
		}
		fmt.Fprintf(&b, "%s\n", a.RecommendedAction)
		fmt.Fprintf(&b, "Please see a %s within 24 hours.\n", a.SpecialistNeeded)
		writeRedFlags(&b, a.RedFlags)

	default: // routine
		fmt.Fprintf(&b, "This looks like %s.\n\n", a.Condition)
		if explanation != "" {
			fmt.Fprintf(&b, "%s\n", explanation)
		}
		if a.HomeCare != "" {
			fmt.Fprintf(&b, "Home care: %s\n", a.HomeCare)
		}
		fmt.Fprintf(&b, "If it does not improve, see a %s in the next few days.\n", a.SpecialistNeeded)
	}

	b.WriteString("\n")
	b.WriteString(disclaimer)
	return b.String()
}

func writeRedFlags(b *strings.Builder, flags []string) {
	if len(flags) == 0 {
		return
	}
	fmt.Fprintf(b, "Watch for: %s.\n", strings.Join(flags, ", "))
}
