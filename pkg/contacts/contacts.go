// Package contacts loads the recipient list for a run and computes the
// content fingerprints used for change detection between runs.
package contacts

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// Required CSV columns, matched after trimming header whitespace.
const (
	ColumnName    = "First Name"
	ColumnPhone   = "Mobile Phone"
	ColumnMessage = "Message"
)

// Recipient is one entry of the source data, immutable once loaded.
type Recipient struct {
	// Name is the display name from the source file
	Name string

	// Phone is the normalized phone-number key
	Phone string

	// Message is the payload, arbitrary Unicode, possibly multi-line
	Message string

	// Fingerprint is a hash over name, phone, and message
	Fingerprint string
}

// Key returns the stable ledger key for the recipient.
func (r Recipient) Key() string {
	return r.Phone
}

// Fingerprint computes the content hash over a recipient's identity and
// message. A changed message produces a different fingerprint, which the
// orchestrator surfaces as requiring operator disposition.
func Fingerprint(name, phone, message string) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(phone))
	h.Write([]byte{0})
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// LoadCSV reads recipients from a CSV file with a header row containing
// at least the First Name, Mobile Phone, and Message columns. Rows with
// an empty phone after normalization are rejected. Order is preserved.
func LoadCSV(path string) ([]Recipient, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open contacts file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse contacts file: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("contacts file is empty")
	}

	header := rows[0]
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, required := range []string{ColumnName, ColumnPhone, ColumnMessage} {
		if _, ok := cols[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("contacts file missing required columns: %s", strings.Join(missing, ", "))
	}

	var recipients []Recipient
	for i, row := range rows[1:] {
		cell := func(col string) string {
			idx := cols[col]
			if idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		name := cell(ColumnName)
		phone := NormalizePhone(cell(ColumnPhone))
		message := cell(ColumnMessage)

		if phone == "" {
			return nil, fmt.Errorf("row %d: empty or invalid phone number", i+2)
		}

		recipients = append(recipients, Recipient{
			Name:        name,
			Phone:       phone,
			Message:     message,
			Fingerprint: Fingerprint(name, phone, message),
		})
	}

	if len(recipients) == 0 {
		return nil, fmt.Errorf("contacts file has no data rows")
	}

	return recipients, nil
}
