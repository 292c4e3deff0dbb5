package markup

import "strings"

// SanitizeClass turns an object name into a safe class label: runs of
// non-alphanumeric characters collapse into a single hyphen and the ends are
// trimmed, so "My Button!! 2" becomes "My-Button-2". The empty string means
// the name had nothing usable.
func SanitizeClass(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range name {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !alnum {
			pending = true
			continue
		}
		if pending && b.Len() > 0 {
			b.WriteByte('-')
		}
		pending = false
		b.WriteRune(r)
	}
	return b.String()
}
