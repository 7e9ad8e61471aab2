package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// phonePattern matches the payout destination format shown to users:
// 09 followed by nine digits.
var phonePattern = regexp.MustCompile(`^09\d{9}$`)

// ParseAmount parses a user-typed currency amount and validates it against
// the balance. Accepts plain digits plus the usual shorthands (5k, half, all).
func ParseAmount(text string, balance int64) (int64, error) {
	s := strings.TrimSpace(strings.ToLower(text))
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")

	switch s {
	case "all", "max":
		return balance, nil
	case "half":
		return balance / 2, nil
	}

	multiplier := int64(1)
	if strings.HasSuffix(s, "k") {
		multiplier = 1000
		s = strings.TrimSuffix(s, "k")
	} else if strings.HasSuffix(s, "m") {
		multiplier = 1000000
		s = strings.TrimSuffix(s, "m")
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %s", text)
	}
	return n * multiplier, nil
}

// ParsePaymentInfo splits a payout destination message into phone and account
// name. The expected format is two lines: the phone number, then the name.
func ParsePaymentInfo(text string) (phone, name string, err error) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return "", "", fmt.Errorf("expected phone number and account name on separate lines")
	}
	phone = strings.TrimSpace(lines[0])
	name = strings.TrimSpace(lines[1])
	if !phonePattern.MatchString(phone) {
		return "", "", fmt.Errorf("invalid phone number: must match 09xxxxxxxxx")
	}
	if name == "" {
		return "", "", fmt.Errorf("account name must not be empty")
	}
	return phone, name, nil
}

// ParseUserID converts a Discord snowflake string to int64.
func ParseUserID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
