package middleware

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Input validation and sanitization utilities

var organizationPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateOrganizationID validates organization ID format
func ValidateOrganizationID(org string) error {
	if org == "" {
		return fmt.Errorf("organization ID cannot be empty")
	}
	// Allow alphanumeric, dash, underscore (max 64 chars)
	if !organizationPattern.MatchString(org) {
		return fmt.Errorf("invalid organization ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateID validates audit and rule ids, which are UUIDs
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s ID cannot be empty", kind)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid %s ID format", kind)
	}
	return nil
}

// ValidateFileName rejects names that could escape the upload prefix
func ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("file name too long")
	}
	if filepath.Base(name) != name || strings.Contains(name, "..") {
		return fmt.Errorf("path traversal detected")
	}

	// Block dangerous patterns
	dangerous := []string{"$(", "`", "|", ";", "\n", "\r", "\x00"}
	for _, d := range dangerous {
		if strings.Contains(name, d) {
			return fmt.Errorf("invalid characters in file name")
		}
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidatePage validates pagination page
func ValidatePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}
