package totp

import (
	"errors"
	"testing"
	"time"
)

// rfcSecret is the RFC 6238 test secret "12345678901234567890" in base32.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestGenerateAt_RFCVectors(t *testing.T) {
	// RFC 6238 Appendix B vectors, truncated to 6 digits.
	tests := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}

	for _, tt := range tests {
		code, err := generateAt(rfcSecret, time.Unix(tt.unix, 0))
		if err != nil {
			t.Fatalf("generateAt(%d) failed: %v", tt.unix, err)
		}
		if code != tt.want {
			t.Errorf("generateAt(%d) = %q, want %q", tt.unix, code, tt.want)
		}
	}
}

func TestGenerateAt_StableWithinWindow(t *testing.T) {
	a, err := generateAt(rfcSecret, time.Unix(90, 0))
	if err != nil {
		t.Fatalf("generateAt failed: %v", err)
	}
	b, err := generateAt(rfcSecret, time.Unix(119, 0))
	if err != nil {
		t.Fatalf("generateAt failed: %v", err)
	}
	if a != b {
		t.Errorf("codes differ within one window: %q vs %q", a, b)
	}

	c, err := generateAt(rfcSecret, time.Unix(120, 0))
	if err != nil {
		t.Fatalf("generateAt failed: %v", err)
	}
	if a == c {
		t.Errorf("code did not change across window boundary: %q", a)
	}
}

func TestGenerateAt_SecretNormalization(t *testing.T) {
	want, err := generateAt(rfcSecret, time.Unix(59, 0))
	if err != nil {
		t.Fatalf("generateAt failed: %v", err)
	}

	variants := []string{
		"gezdgnbvgy3tqojqgezdgnbvgy3tqojq",
		"GEZD GNBV GY3T QOJQ GEZD GNBV GY3T QOJQ",
		rfcSecret + "====",
	}
	for _, secret := range variants {
		got, err := generateAt(secret, time.Unix(59, 0))
		if err != nil {
			t.Fatalf("generateAt(%q) failed: %v", secret, err)
		}
		if got != want {
			t.Errorf("generateAt(%q) = %q, want %q", secret, got, want)
		}
	}
}

func TestGenerate_InvalidSecret(t *testing.T) {
	tests := []string{"", "not-base32!", "1"}
	for _, secret := range tests {
		_, err := Generate(secret)
		if !errors.Is(err, ErrInvalidSecret) {
			t.Errorf("Generate(%q) error = %v, want ErrInvalidSecret", secret, err)
		}
	}
}

func TestGenerate_SixDigits(t *testing.T) {
	code, err := Generate(rfcSecret)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("code length = %d, want 6", len(code))
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			t.Errorf("code %q contains non-digit %q", code, c)
		}
	}
}
