// Package keypair implements ed25519 accounts for a OneChain/Sui-style
// chain: mnemonic derivation, address computation and transaction signing.
package keypair

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
)

// ed25519 key scheme flag, prefixed to public keys in addresses and to
// serialized signatures.
const schemeED25519 byte = 0x00

// Transactions are signed over an intent message: a 3-byte intent prefix
// (scope=TransactionData, version, app) followed by the BCS transaction
// bytes, hashed with blake2b-256.
var txIntentPrefix = []byte{0x00, 0x00, 0x00}

// defaultDerivationPath is m/44'/784'/0'/0'/0' (all hardened).
var defaultDerivationPath = []uint32{44, 784, 0, 0, 0}

// Keypair is an ed25519 signing identity.
type Keypair struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	addr string
}

// FromSeed builds a keypair from a 32-byte private key seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("private key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	kp := &Keypair{priv: priv, pub: pub}
	kp.addr = deriveAddress(pub)
	return kp, nil
}

// FromMnemonic derives the keypair at m/44'/784'/0'/0'/0' from a BIP-39
// mnemonic, matching wallet behavior on this chain.
func FromMnemonic(mnemonic string) (*Keypair, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	key, err := derivePath(seed, defaultDerivationPath)
	if err != nil {
		return nil, errors.Wrap(err, "derive key")
	}
	return FromSeed(key)
}

// FromPrivateKeyString accepts a hex (optionally 0x-prefixed) or base64
// encoded 32-byte seed. A leading scheme flag byte is tolerated and
// stripped.
func FromPrivateKeyString(raw string) (*Keypair, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty private key")
	}

	var decoded []byte
	if b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x")); err == nil {
		decoded = b
	} else if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		decoded = b
	} else {
		return nil, errors.New("private key must be hex or base64")
	}

	if len(decoded) == ed25519.SeedSize+1 && decoded[0] == schemeED25519 {
		decoded = decoded[1:]
	}
	return FromSeed(decoded)
}

// Address returns the 0x-prefixed account address:
// blake2b-256(flag || pubkey).
func (k *Keypair) Address() string { return k.addr }

// PublicKey returns the raw ed25519 public key.
func (k *Keypair) PublicKey() ed25519.PublicKey { return k.pub }

// SignTransactionBytes signs serialized transaction bytes and returns the
// chain's serialized signature format, base64(flag || sig || pubkey).
// The exact byte buffer matters: signing covers byte content, not semantic
// equivalence, so the caller must pass the same bytes to every co-signer.
func (k *Keypair) SignTransactionBytes(txBytes []byte) (string, error) {
	if len(txBytes) == 0 {
		return "", errors.New("empty transaction bytes")
	}
	digest := intentDigest(txBytes)
	sig := ed25519.Sign(k.priv, digest[:])

	serialized := make([]byte, 0, 1+len(sig)+len(k.pub))
	serialized = append(serialized, schemeED25519)
	serialized = append(serialized, sig...)
	serialized = append(serialized, k.pub...)
	return base64.StdEncoding.EncodeToString(serialized), nil
}

// VerifyTransactionSignature checks a serialized signature against
// transaction bytes. Used in tests and by sponsord to sanity-check the
// user's signature before co-signing.
func VerifyTransactionSignature(txBytes []byte, serializedB64 string) (signer string, err error) {
	raw, err := base64.StdEncoding.DecodeString(serializedB64)
	if err != nil {
		return "", errors.Wrap(err, "decode signature")
	}
	if len(raw) != 1+ed25519.SignatureSize+ed25519.PublicKeySize {
		return "", errors.Errorf("bad signature length %d", len(raw))
	}
	if raw[0] != schemeED25519 {
		return "", errors.Errorf("unsupported key scheme 0x%02x", raw[0])
	}
	sig := raw[1 : 1+ed25519.SignatureSize]
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])

	digest := intentDigest(txBytes)
	if !ed25519.Verify(pub, digest[:], sig) {
		return "", errors.New("signature verification failed")
	}
	return deriveAddress(pub), nil
}

func intentDigest(txBytes []byte) [32]byte {
	msg := make([]byte, 0, len(txIntentPrefix)+len(txBytes))
	msg = append(msg, txIntentPrefix...)
	msg = append(msg, txBytes...)
	return blake2b.Sum256(msg)
}

func deriveAddress(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, schemeED25519)
	buf = append(buf, pub...)
	sum := blake2b.Sum256(buf)
	return fmt.Sprintf("0x%x", sum[:])
}
