package blobstore

import (
	"fmt"
	"strings"
	"time"
)

// DefaultExtension is appended to every generated artifact path.
const DefaultExtension = ".pdf"

// BuildPath computes the deterministic storage address for a document
// artifact. The top-level segment is the patient identifier; the file name
// combines the sanitized document name, the sanitized identifier and the
// document date:
//
//	<cip>/<name>_<cip>_<DDMMYYYY>.pdf
//
// Identical (patientIdentifier, documentName, date) inputs always yield the
// identical path, so a same-day regeneration lands on the same blob address
// and wins via the Put upsert.
func BuildPath(patientIdentifier, documentName string, date time.Time) string {
	return fmt.Sprintf("%s/%s_%s_%s%s",
		patientIdentifier,
		Sanitize(documentName),
		Sanitize(patientIdentifier),
		formatDDMMYYYY(date),
		DefaultExtension,
	)
}

// Sanitize lower-cases the input and replaces every character outside
// [a-z0-9] with an underscore.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func formatDDMMYYYY(t time.Time) string {
	return t.Format("02012006")
}
