package errors

import (
	"strings"
	"testing"
)

func TestValidateAlias(t *testing.T) {
	tests := []struct {
		name    string
		ns, id  string
		wantErr bool
	}{
		{"doi", "doi", "10.1038/nature12373", false},
		{"pmid", "pmid", "23903748", false},
		{"url", "url", "https://example.org/paper", false},
		{"github", "github", "owner/repo", false},

		{"empty id", "doi", "  ", true},
		{"bad doi", "doi", "11.1/x", true},
		{"pmid letters", "pmid", "12a", true},
		{"ftp url", "url", "ftp://example.org", true},
		{"upper namespace", "DOI", "10.1/x", true},
		{"control char", "github", "a\x01b", true},
		{"too long", "github", strings.Repeat("a", 3000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAlias(tt.ns, tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAlias(%q, %q) error = %v, wantErr %v", tt.ns, tt.id, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("error code = %v, want %v", GetCode(err), ErrCodeInvalidInput)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https", "https://example.com/path", false},
		{"http", "http://example.com/path", false},

		{"empty", "", true},
		{"ftp", "ftp://example.com", true},
		{"file", "file:///etc/passwd", true},
		{"javascript", "javascript:alert(1)", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateProviderName(t *testing.T) {
	for _, ok := range []string{"crossref", "pubmed", "web_page2"} {
		if err := ValidateProviderName(ok); err != nil {
			t.Errorf("ValidateProviderName(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "Crossref", "9x", "a-b"} {
		err := ValidateProviderName(bad)
		if !Is(err, ErrCodeConfiguration) {
			t.Errorf("ValidateProviderName(%q) = %v, want CONFIGURATION_ERROR", bad, err)
		}
	}
}
