package labflow

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

var entityIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

// NewEntityID - opaque 24-character lowercase hex identifier (12 random bytes)
func NewEntityID() string {
	buffer := make([]byte, 12)
	_, _ = rand.Read(buffer)
	return hex.EncodeToString(buffer)
}

func IsValidEntityID(id string) bool {
	return entityIDPattern.MatchString(id)
}

const barcodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewBarcode - external sample label in the form BC-XXXXXXXXX
func NewBarcode() string {
	buffer := make([]byte, 9)
	_, _ = rand.Read(buffer)
	code := make([]byte, 9)
	for i := range buffer {
		code[i] = barcodeAlphabet[int(buffer[i])%len(barcodeAlphabet)]
	}
	return "BC-" + string(code)
}

// NewOrderNumber - internal order reference, date-prefixed for readability
func NewOrderNumber(now time.Time) string {
	suffix := make([]byte, 3)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), hex.EncodeToString(suffix))
}

func nullStringToStringPointer(value sql.NullString) *string {
	if value.Valid {
		return &value.String
	}
	return nil
}

func stringPointerToNullString(value *string) sql.NullString {
	if value != nil {
		return sql.NullString{String: *value, Valid: true}
	}
	return sql.NullString{}
}

func nullTimeToTimePointer(value sql.NullTime) *time.Time {
	if value.Valid {
		return &value.Time
	}
	return nil
}

func timePointerToNullTime(value *time.Time) sql.NullTime {
	if value != nil {
		return sql.NullTime{Time: *value, Valid: true}
	}
	return sql.NullTime{}
}
