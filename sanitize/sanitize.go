// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sanitize

import (
	"fmt"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/subosito/gozaru"
	"golang.org/x/net/idna"
)

const (
	// EmailMaxLength is the longest email address that is accepted.
	EmailMaxLength = 254

	// URLMaxLength is the longest URL that is accepted.
	URLMaxLength = 2048

	// TextAreaMaxLength is the default max length of free text fields.
	TextAreaMaxLength = 5000

	// NameMinLength and NameMaxLength are the default bounds of a person
	// name.
	NameMinLength = 2
	NameMaxLength = 100

	// PhoneMinDigits and PhoneMaxDigits are the bounds of a phone number
	// once the separators have been stripped.
	PhoneMinDigits = 10
	PhoneMaxDigits = 15

	// PriceMax is the highest price that is accepted.
	PriceMax = 1000000

	// filenameFallback is used when nothing is left of a file name.
	filenameFallback = "file"
)

var (
	regexpControlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	regexpEmail        = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	regexpName         = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑüÜ\s\-']+$`)
	regexpPhoneSep     = regexp.MustCompile(`[\s\-()]`)
	regexpDigits       = regexp.MustCompile(`^[0-9]+$`)
	regexpPriceChars   = regexp.MustCompile(`[^\d.]`)
)

// FieldError is returned when a field value is missing or cannot be
// validated.
type FieldError struct {
	Field  string
	Reason string
}

// Error satisfies the error interface.
func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("El campo '%v' %v", e.Field, e.Reason)
}

const (
	reasonRequired = "es requerido"
	reasonInvalid  = "tiene un valor inválido"
)

// truncate returns the first max characters of s. A max <= 0 means no
// limit.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}

// String removes control characters, truncates to max characters, escapes
// any HTML and trims the surrounding white space.
func String(s string, max int) string {
	s = regexpControlChars.ReplaceAllString(s, "")
	s = truncate(s, max)
	s = html.EscapeString(s)
	return strings.TrimSpace(s)
}

// TextArea cleans a multi line free text field. It behaves like String and
// additionally normalizes line endings to \n.
func TextArea(s string, max int) string {
	if max <= 0 {
		max = TextAreaMaxLength
	}
	s = regexpControlChars.ReplaceAllString(s, "")
	s = truncate(s, max)
	s = html.EscapeString(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// Email returns the lower cased email address. Internationalized domains are
// converted to their ASCII form before the address is validated.
func Email(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", FieldError{Field: "email", Reason: reasonRequired}
	}

	at := strings.LastIndex(email, "@")
	if at > 0 {
		domain, err := idna.Lookup.ToASCII(email[at+1:])
		if err != nil {
			return "", FieldError{Field: "email", Reason: reasonInvalid}
		}
		email = email[:at+1] + domain
	}

	if len(email) > EmailMaxLength || !regexpEmail.MatchString(email) {
		return "", FieldError{Field: "email", Reason: reasonInvalid}
	}
	return email, nil
}

// URL returns the trimmed URL. Only http and https URLs are accepted.
func URL(u string) (string, error) {
	u = strings.TrimSpace(u)
	switch {
	case !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://"):
		return "", FieldError{Field: "url", Reason: reasonInvalid}
	case len(u) > URLMaxLength:
		return "", FieldError{Field: "url", Reason: reasonInvalid}
	}
	return u, nil
}

// Filename returns a file name that is safe to use on any file system.
func Filename(name string) string {
	name = gozaru.Sanitize(name)
	if name == "" {
		return filenameFallback
	}
	return name
}

// Name validates a person or business name. Letters, including the Spanish
// accented letters, spaces, hyphens and apostrophes are allowed.
func Name(name string, min, max int) (string, error) {
	if min <= 0 {
		min = NameMinLength
	}
	if max <= 0 {
		max = NameMaxLength
	}
	name = strings.TrimSpace(name)
	l := utf8.RuneCountInString(name)
	if l < min || l > max || !regexpName.MatchString(name) {
		return "", FieldError{Field: "nombre", Reason: reasonInvalid}
	}
	return name, nil
}

// Phone strips spaces, hyphens and parentheses from a phone number and
// validates that what is left is 10 to 15 digits.
func Phone(phone string) (string, error) {
	phone = regexpPhoneSep.ReplaceAllString(phone, "")
	l := len(phone)
	if !regexpDigits.MatchString(phone) || l < PhoneMinDigits ||
		l > PhoneMaxDigits {
		return "", FieldError{Field: "telefono", Reason: reasonInvalid}
	}
	return phone, nil
}

// Price parses a price, dropping anything that is not a digit or a decimal
// point. The result is rounded to two decimals.
func Price(price string) (float64, error) {
	price = regexpPriceChars.ReplaceAllString(price, "")
	if price == "" {
		return 0, FieldError{Field: "precio", Reason: reasonInvalid}
	}
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return 0, FieldError{Field: "precio", Reason: reasonInvalid}
	}
	return PriceValue(p)
}

// PriceValue validates a numeric price and rounds it to two decimals.
func PriceValue(p float64) (float64, error) {
	if math.IsNaN(p) || p < 0 || p > PriceMax {
		return 0, FieldError{Field: "precio", Reason: reasonInvalid}
	}
	return math.Round(p*100) / 100, nil
}

// Integer parses a non negative decimal integer and checks it against the
// optional bounds.
func Integer(v string, min, max *int64) (int64, error) {
	if !regexpDigits.MatchString(v) {
		return 0, FieldError{Reason: "valor entero inválido"}
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, FieldError{Reason: "valor entero inválido"}
	}
	return IntegerValue(i, min, max)
}

// IntegerValue checks an integer against the optional bounds.
func IntegerValue(i int64, min, max *int64) (int64, error) {
	if min != nil && i < *min {
		return 0, FieldError{Reason: "valor entero fuera de rango"}
	}
	if max != nil && i > *max {
		return 0, FieldError{Reason: "valor entero fuera de rango"}
	}
	return i, nil
}
