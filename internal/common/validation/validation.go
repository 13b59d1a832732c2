package validation

import "regexp"

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
	tagPattern   = regexp.MustCompile(`^[a-z0-9.][a-z0-9+#.\- ]*$`)
)

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhone validates basic phone number format
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ValidateSkillTag validates a normalized (lowercased) skill tag.
// Tags allow letters, digits and the few symbols that appear in real skill
// names ("c++", "c#", ".net", "node.js").
func ValidateSkillTag(tag string) bool {
	return tagPattern.MatchString(tag)
}
