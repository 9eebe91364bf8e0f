package certvault

import (
	"errors"
	"testing"
)

func TestEncodePKCS12RejectsUnsupportedKey(t *testing.T) {
	cert, _ := rsaLeafWithKey(t, "badkey.example.com")
	if _, err := EncodePKCS12("not a key", cert, nil, "pw"); err == nil {
		t.Error("expected error for unsupported key type")
	}
}

func TestDecodePKCS12Garbage(t *testing.T) {
	_, err := DecodePKCS12([]byte("definitely not pkcs12"), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrPasswordRequired) {
		t.Error("garbage must not be reported as a password problem")
	}
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Errorf("got %v, want a FormatError", err)
	}
}

func TestDecodePKCS7Garbage(t *testing.T) {
	if _, err := DecodePKCS7([]byte("not asn1")); err == nil {
		t.Error("expected error for garbage input")
	}
}
