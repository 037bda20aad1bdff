package fields

import "regexp"

// Cheap local signal only. The authoritative PII decision comes from the external
// detection service and is never stored in IsPII.
var (
	piiNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)email`),
		regexp.MustCompile(`(?i)ssn|social.security`),
		regexp.MustCompile(`(?i)phone|tel`),
		regexp.MustCompile(`(?i)credit.card|cc`),
		regexp.MustCompile(`(?i)password|pwd`),
		regexp.MustCompile(`(?i)user.*name|login`),
	}

	piiValuePatterns = []*regexp.Regexp{
		emailRegex,
		regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`),
		regexp.MustCompile(`^\d{3}[-.]?\d{3}[-.]?\d{4}$`),
		regexp.MustCompile(`^\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}$`),
	}
)

// LooksLikePII flags a field whose name or value resembles personal data
func LooksLikePII(fieldName, value string) bool {
	for _, p := range piiNamePatterns {
		if p.MatchString(fieldName) {
			return true
		}
	}
	for _, p := range piiValuePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}
