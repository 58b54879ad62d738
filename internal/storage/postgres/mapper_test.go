package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

func TestInetMapping(t *testing.T) {
	tests := []struct {
		in        string
		wantValid bool
		want      string
	}{
		{"127.0.0.1", true, "127.0.0.1"},
		{"10.0.0.7:53122", true, "10.0.0.7"},
		{"[::1]:8080", true, "::1"},
		{"2001:db8::1", true, "2001:db8::1"},
		{"", false, ""},
		{"not-an-ip", false, ""},
	}

	for _, tt := range tests {
		inet := toInet(tt.in)
		if inet.Valid != tt.wantValid {
			t.Errorf("toInet(%q).Valid = %v; want %v", tt.in, inet.Valid, tt.wantValid)
			continue
		}
		if got := fromInet(inet); got != tt.want {
			t.Errorf("fromInet(toInet(%q)) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestInetMask(t *testing.T) {
	inet := toInet("192.168.1.10")
	ones, bits := inet.IPNet.Mask.Size()
	if ones != 32 || bits != 32 {
		t.Errorf("mask = /%d of %d; want /32", ones, bits)
	}
}

func TestAttributesMapping(t *testing.T) {
	raw, err := attributesToJSON(nil)
	if err != nil {
		t.Fatalf("attributesToJSON(nil) error = %v", err)
	}
	if raw.Valid {
		t.Error("empty attributes should map to NULL")
	}

	raw, err = attributesToJSON(map[string]string{"plan": "pro"})
	if err != nil {
		t.Fatalf("attributesToJSON() error = %v", err)
	}
	attrs, err := attributesFromJSON(raw)
	if err != nil {
		t.Fatalf("attributesFromJSON() error = %v", err)
	}
	if attrs["plan"] != "pro" {
		t.Errorf("attrs = %v", attrs)
	}

	if _, err := attributesFromJSON(pqtype.NullRawMessage{RawMessage: []byte("{"), Valid: true}); err == nil {
		t.Error("attributesFromJSON(invalid) error = nil")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})) {
		t.Error("wrapped 23505 should be a unique violation")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Error("23503 is a foreign key violation")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Error("plain error is not a unique violation")
	}
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("migrations/002_auth.sql")
	if err != nil || v != 2 {
		t.Errorf("parseVersion() = %d, %v; want 2", v, err)
	}
	if _, err := parseVersion("migrations/auth.sql"); err == nil {
		t.Error("parseVersion(no prefix) error = nil")
	}
}
