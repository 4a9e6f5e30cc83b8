package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var (
	// safePathRegex matches safe path components (alphanumeric, dash, underscore, dot)
	safePathRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

	// scheduleIDRegex matches sched_<8 hex/uuid chars> identifiers
	scheduleIDRegex = regexp.MustCompile(`^sched_[0-9a-f-]{8}$`)
)

// MaxEntityNameLength caps entity names so they stay usable as map keys and
// log fields.
const MaxEntityNameLength = 64

// ValidateEntityName checks an entity name for emptiness, length, and
// control characters.
func ValidateEntityName(name string) error {
	if name == "" {
		return fmt.Errorf("entity name cannot be empty")
	}
	if len(name) > MaxEntityNameLength {
		return fmt.Errorf("entity name exceeds %d characters", MaxEntityNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("entity name contains control characters")
		}
	}
	return nil
}

// ValidateScheduleID checks a schedule identifier
func ValidateScheduleID(id string) error {
	if id == "" {
		return fmt.Errorf("schedule ID cannot be empty")
	}
	if !scheduleIDRegex.MatchString(id) {
		return fmt.Errorf("invalid schedule ID format: %s", id)
	}
	return nil
}

// SanitizePath removes path traversal attempts and validates path components
func SanitizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	// Reject obvious traversal attempts
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path traversal detected: %s", path)
	}

	// Reject absolute paths when relative expected
	if strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("absolute paths not allowed: %s", path)
	}

	// Split and validate each component
	parts := strings.Split(path, "/")
	for _, part := range parts {
		if part == "" {
			continue // Allow trailing/leading slashes
		}
		if !safePathRegex.MatchString(part) {
			return "", fmt.Errorf("unsafe path component: %s", part)
		}
	}

	return path, nil
}

// SanitizeExportPath validates a scene export path and anchors it under
// root. An empty root means the current directory.
func SanitizeExportPath(root, path string) (string, error) {
	clean, err := SanitizePath(path)
	if err != nil {
		return "", err
	}
	if root == "" {
		return clean, nil
	}
	return filepath.Join(root, clean), nil
}
