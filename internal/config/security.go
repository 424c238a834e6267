// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
)

// DefaultPasswordPolicy enables every check.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:     8,
		RejectNumeric: true,
		RejectCommon:  true,
		RejectSimilar: true,
	}
}

var commonPasswords = []string{
	"password", "password1", "12345678", "123456789", "1234567890",
	"qwerty123", "qwertyuiop", "iloveyou", "admin123", "administrator",
	"letmein1", "welcome1", "sunshine", "football", "baseball",
	"trustno1", "passw0rd", "changeme", "abc12345", "11111111",
}

// Check returns an error describing the first rule the password breaks.
func (p PasswordPolicy) Check(username, password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must contain at least %d characters", p.MinLength)
	}
	if p.RejectNumeric && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return errors.New("password is entirely numeric")
	}
	if p.RejectCommon && slices.Contains(commonPasswords, strings.ToLower(password)) {
		return errors.New("password is too common")
	}
	if p.RejectSimilar && username != "" {
		u, pw := strings.ToLower(username), strings.ToLower(password)
		if strings.Contains(pw, u) || strings.Contains(u, pw) {
			return errors.New("password is too similar to the username")
		}
	}
	return nil
}

// NormalizeHostPattern lowercases an ALLOWED_HOSTS entry and converts
// internationalized names to ASCII. "*" and a leading "." (any subdomain)
// are kept as wildcards.
func NormalizeHostPattern(pattern string) (string, error) {
	p := strings.TrimSpace(pattern)
	if p == "" {
		return "", errors.New("empty host")
	}
	if p == "*" {
		return p, nil
	}
	if host, port, err := net.SplitHostPort(p); err == nil {
		return "", fmt.Errorf("host %q must not carry a port (%s)", host, port)
	}
	if ip := net.ParseIP(strings.Trim(p, "[]")); ip != nil {
		return ip.String(), nil
	}

	prefix := ""
	if strings.HasPrefix(p, ".") {
		prefix, p = ".", p[1:]
	}
	ascii, err := idna.Lookup.ToASCII(p)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", pattern, err)
	}
	return prefix + strings.ToLower(ascii), nil
}

// HostAllowed matches a request host, without port, against normalized patterns.
func HostAllowed(host string, patterns []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	for _, p := range patterns {
		switch {
		case p == "*":
			return true
		case strings.HasPrefix(p, "."):
			if host == p[1:] || strings.HasSuffix(host, p) {
				return true
			}
		case host == p:
			return true
		}
	}
	return false
}
