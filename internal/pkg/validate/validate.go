package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-bookstore-admin/internal/domain"
	"github.com/go-bookstore-admin/internal/pkg/otp"
	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// Email reports whether s looks like a deliverable address.
func Email(s string) bool {
	return emailRe.MatchString(s)
}

// otpRe matches exactly otp.Length decimal digits.
var otpRe = regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, otp.Length))

// OTPFormat reports whether s has the shape of a generated code.
func OTPFormat(s string) bool {
	return otpRe.MatchString(s)
}

// Intent reports whether s is a known intent value.
func Intent(s string) bool {
	for _, i := range domain.Intents {
		if s == i {
			return true
		}
	}
	return false
}

// Password checks the account password policy. Every unmet rule is
// reported, so a caller can show all of them at once instead of one per
// round trip.
func Password(pw string) (bool, []string) {
	var problems []string
	if len(pw) < 8 {
		problems = append(problems, "must be at least 8 characters")
	}
	if len(pw) > 72 {
		problems = append(problems, "must be at most 72 characters")
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper {
		problems = append(problems, "must contain an uppercase letter")
	}
	if !lower {
		problems = append(problems, "must contain a lowercase letter")
	}
	if !digit {
		problems = append(problems, "must contain a digit")
	}
	if !special {
		problems = append(problems, "must contain a special character")
	}
	return len(problems) == 0, problems
}
