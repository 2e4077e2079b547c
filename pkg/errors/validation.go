package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateIdentifier validates an alias identifier for safety.
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - No control characters or null bytes
//   - Maximum length of 2048 characters
//
// Namespace-specific checks are done by [ValidateAlias].
func ValidateIdentifier(id string) error {
	if strings.TrimSpace(id) == "" {
		return New(ErrCodeInvalidInput, "identifier cannot be empty")
	}

	if len(id) > 2048 {
		return New(ErrCodeInvalidInput, "identifier too long (max 2048 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "identifier contains invalid control characters")
		}
	}

	return nil
}

// namespacePattern matches lower-case namespace names.
var namespacePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// doiPattern matches the DOI directory indicator and prefix.
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$|^10\.\d+/\S+$`)

// ValidateAlias validates a canonical (namespace, identifier) pair.
func ValidateAlias(namespace, id string) error {
	if !namespacePattern.MatchString(namespace) {
		return New(ErrCodeInvalidInput, "invalid namespace: %q", namespace)
	}
	if err := ValidateIdentifier(id); err != nil {
		return err
	}

	switch namespace {
	case "doi":
		if !doiPattern.MatchString(strings.TrimPrefix(id, "doi:")) {
			return New(ErrCodeInvalidInput, "invalid DOI: %q", id)
		}
	case "pmid":
		for _, r := range id {
			if !unicode.IsDigit(r) {
				return New(ErrCodeInvalidInput, "invalid PubMed id: %q", id)
			}
		}
	case "url":
		return ValidateURL(id)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// providerNamePattern matches configured provider names.
var providerNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidateProviderName validates a provider name from configuration.
func ValidateProviderName(name string) error {
	if !providerNamePattern.MatchString(name) {
		return New(ErrCodeConfiguration, "invalid provider name: %q", name)
	}
	return nil
}
