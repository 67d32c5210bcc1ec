package enums

import "fmt"

// PercentageOffSubject chooses which subtotal a percentage discount is taken from.
type PercentageOffSubject string

const (
	PercentageOffSubjectOriginal   PercentageOffSubject = "original"
	PercentageOffSubjectDiscounted PercentageOffSubject = "discounted"
)

var validPercentageOffSubjects = []PercentageOffSubject{
	PercentageOffSubjectOriginal,
	PercentageOffSubjectDiscounted,
}

// String implements fmt.Stringer.
func (p PercentageOffSubject) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PercentageOffSubject.
func (p PercentageOffSubject) IsValid() bool {
	for _, candidate := range validPercentageOffSubjects {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePercentageOffSubject converts raw input into a PercentageOffSubject.
func ParsePercentageOffSubject(value string) (PercentageOffSubject, error) {
	for _, candidate := range validPercentageOffSubjects {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid percentage off subject %q", value)
}
