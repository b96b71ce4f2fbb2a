package secretstore

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, 32)
	s, err := Open(OpenOptions{Path: t.TempDir(), EncryptionKey: key})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSponsorMnemonicRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, found, err := s.SponsorMnemonic(); err != nil || found {
		t.Fatalf("empty store: found=%v err=%v", found, err)
	}

	const mn = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	if err := s.SetSponsorMnemonic("  " + mn + "\n"); err != nil {
		t.Fatalf("SetSponsorMnemonic error: %v", err)
	}

	got, found, err := s.SponsorMnemonic()
	if err != nil {
		t.Fatalf("SponsorMnemonic error: %v", err)
	}
	if !found || got != mn {
		t.Fatalf("round trip got=%q found=%v", got, found)
	}
}

func TestSponsorPrivateKeyRoundTrip(t *testing.T) {
	s := openTestStore(t)

	const pk = "0x0102030405060708010203040506070801020304050607080102030405060708"
	if err := s.SetSponsorPrivateKey(pk); err != nil {
		t.Fatalf("SetSponsorPrivateKey error: %v", err)
	}
	got, found, err := s.SponsorPrivateKey()
	if err != nil || !found || got != pk {
		t.Fatalf("round trip got=%q found=%v err=%v", got, found, err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(OpenOptions{}); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestParseKey(t *testing.T) {
	raw := bytes.Repeat([]byte{0x07}, 32)

	for name, enc := range map[string]string{
		"hex":    hex.EncodeToString(raw),
		"0x-hex": "0x" + hex.EncodeToString(raw),
		"base64": base64.StdEncoding.EncodeToString(raw),
	} {
		got, err := ParseKey(enc)
		if err != nil {
			t.Fatalf("%s: ParseKey error: %v", name, err)
		}
		if !bytes.Equal(got, raw) {
			t.Fatalf("%s: key mismatch", name)
		}
	}

	if got, err := ParseKey("   "); err != nil || got != nil {
		t.Fatalf("empty input should yield nil key, got=%v err=%v", got, err)
	}
	if _, err := ParseKey(hex.EncodeToString(raw[:16])); err == nil {
		t.Fatal("expected error for 16-byte key")
	}
	if _, err := ParseKey("!!not-a-key!!"); err == nil {
		t.Fatal("expected error for garbage input")
	}
}
