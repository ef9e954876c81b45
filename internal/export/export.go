// Package export formats classified submissions as plain-text lead records.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/veriscript-health/clarity/internal/domain"
)

// ErrUnpopulatedVerdict indicates a submission whose verdict is missing a
// status or reason. Exports always carry both.
var ErrUnpopulatedVerdict = fmt.Errorf("verdict status and reason are required")

// Format renders a submission as the plain-text lead record.
func Format(sub *domain.Submission) ([]byte, error) {
	if sub == nil {
		return nil, fmt.Errorf("submission is required")
	}
	if sub.Verdict.Status == "" || sub.Verdict.Reason == "" {
		return nil, ErrUnpopulatedVerdict
	}

	timestamp := sub.CreatedAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var b strings.Builder

	b.WriteString("=========================================\n")
	b.WriteString("CLARITY LEAD EXPORT\n")
	fmt.Fprintf(&b, "Date: %s\n", timestamp.Format("1/2/2006, 3:04:05 PM"))
	b.WriteString("=========================================\n\n")

	b.WriteString("--- CONTACT INFO ---\n")
	fmt.Fprintf(&b, "Email: %s\n\n", sub.Contact.Email)

	b.WriteString("--- CLINICAL PROFILE ---\n")
	fmt.Fprintf(&b, "Age: %d\n", sub.Profile.Age)
	fmt.Fprintf(&b, "BMI: %g\n", sub.Profile.BMI)
	fmt.Fprintf(&b, "Diagnosed Conditions: %s\n", joinOrNone(sub.Profile.Comorbidities))
	fmt.Fprintf(&b, "Medication History: %s\n", joinOrNone(sub.Profile.MedicationHistory))
	fmt.Fprintf(&b, "Target Medication: %s\n\n", sub.Profile.Medication)

	b.WriteString("--- INSURANCE DETAILS ---\n")
	fmt.Fprintf(&b, "State: %s\n", sub.Profile.State)
	fmt.Fprintf(&b, "Plan Source: %s\n", sub.Profile.PlanSource)
	fmt.Fprintf(&b, "Carrier: %s\n", sub.Profile.Carrier)
	fmt.Fprintf(&b, "Specified Carrier Name: %s\n", orNA(sub.Profile.CarrierFreeText))
	fmt.Fprintf(&b, "Employer Name: %s\n", orNA(sub.Profile.EmployerName))
	fmt.Fprintf(&b, "Member ID: %s\n", orNotProvided(sub.Profile.MemberID))
	fmt.Fprintf(&b, "Program Enrollment: %s\n\n", yesNo(sub.Profile.LifestyleProgramEnrollment))

	b.WriteString("--- CALCULATED RESULT ---\n")
	fmt.Fprintf(&b, "Status: %s\n", strings.ToUpper(string(sub.Verdict.Status)))
	fmt.Fprintf(&b, "Reason: %s\n\n", sub.Verdict.Reason)

	b.WriteString("=========================================\n")
	b.WriteString("END OF FILE\n")

	return []byte(b.String()), nil
}

// FileWriter persists lead records as one text file per submission.
type FileWriter struct {
	dir string
}

// NewFileWriter creates a writer rooted at dir, creating it if needed.
func NewFileWriter(dir string) (*FileWriter, error) {
	if dir == "" {
		dir = "./exports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &FileWriter{dir: dir}, nil
}

// Write formats and writes the submission, returning the file path.
func (w *FileWriter) Write(sub *domain.Submission) (string, error) {
	content, err := Format(sub)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("clarity_lead_%s.txt", sanitizeID(sub.ID))
	path := filepath.Join(w.dir, name)

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

func sanitizeID(id string) string {
	if id == "" {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "None"
	}
	return strings.Join(values, ", ")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func orNotProvided(s string) string {
	if s == "" {
		return "Not Provided"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
