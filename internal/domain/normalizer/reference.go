package normalizer

import "regexp"

var referenceDigitsRe = regexp.MustCompile(`\d{5,8}`)

// CanonicalReference prefixes a numeric document reference by its length:
// 5 digits become A-00<ref>, 6 digits A-0<ref>, 7 or 8 digits B-<ref>. Any
// other length is returned unchanged.
func CanonicalReference(digits string) string {
	switch len(digits) {
	case 5:
		return "A-00" + digits
	case 6:
		return "A-0" + digits
	case 7, 8:
		return "B-" + digits
	}
	return digits
}

// Reference finds the first 5 to 8 digit run in raw and canonicalizes it.
// It returns "" when raw holds no such run.
func Reference(raw string) string {
	digits := referenceDigitsRe.FindString(raw)
	if digits == "" {
		return ""
	}
	return CanonicalReference(digits)
}
