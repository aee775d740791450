package types

import (
	"database/sql/driver"
	"fmt"
	"regexp"
)

// Document represents a patient identity document number.
// DNI holders carry 8 digits; foreigner IDs (carné de extranjería)
// are 9 alphanumeric characters starting with a letter.
type Document string

var (
	dniRegex = regexp.MustCompile(`^\d{8}$`)
	ceRegex  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]{8}$`)
)

// ParseDocument validates and parses a patient document string
func ParseDocument(s string) (Document, error) {
	if !dniRegex.MatchString(s) && !ceRegex.MatchString(s) {
		return "", fmt.Errorf("document must be an 8-digit DNI or a 9-character foreigner ID")
	}
	return Document(s), nil
}

// String returns the string representation
func (d Document) String() string {
	return string(d)
}

// Masked returns a masked version for display (last 3 characters visible)
func (d Document) Masked() string {
	if len(d) < 4 {
		return "********"
	}
	masked := make([]byte, len(d))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(d)-3:], d[len(d)-3:])
	return string(masked)
}

// IsZero checks if the document is empty
func (d Document) IsZero() bool {
	return d == ""
}

// Value implements driver.Valuer for database serialization
func (d Document) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return string(d), nil
}

// Scan implements sql.Scanner for database deserialization
func (d *Document) Scan(value interface{}) error {
	if value == nil {
		*d = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*d = Document(v)
	case []byte:
		*d = Document(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Document", value)
	}
	return nil
}
