// Package vault implements the Crypto Vault (C2): authenticated symmetric
// encryption of provider/exchange credentials with a per-process master key
// plus a per-user salt. Grounded on the teacher's existing golang.org/x/crypto
// dependency — chacha20poly1305 for AEAD, argon2 for per-user key derivation
// (replacing the teacher's plaintext-adjacent approach in
// internal/auth/jwt.go's bare HMAC secret handling with a proper KDF+AEAD
// pair, since §4.2 requires authenticated encryption).
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/arenahq/bot-arena/pkg/apierr"
)

const (
	saltSize = 16
	keySize  = chacha20poly1305.KeySize
)

// Vault encrypts/decrypts secrets scoped to a user id. A decryption failure
// is always a hard EncryptionFailed error — it never falls back to
// plaintext (§4.2).
type Vault struct {
	masterKey []byte
}

// New builds a Vault from a base64-encoded 32-byte master key. An empty
// masterKeyB64 generates an ephemeral key for local/dev use — any data
// encrypted under it does not survive a restart, which is acceptable only
// outside production.
func New(masterKeyB64 string) (*Vault, error) {
	if masterKeyB64 == "" {
		key := make([]byte, keySize)
		if _, err := rand.Read(key); err != nil {
			return nil, apierr.Wrap(apierr.Internal, "generate ephemeral vault key", err)
		}
		return &Vault{masterKey: key}, nil
	}
	key, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil || len(key) != keySize {
		return nil, apierr.New(apierr.Internal, "VAULT_MASTER_KEY must be base64 for 32 raw bytes")
	}
	return &Vault{masterKey: key}, nil
}

// NewSalt returns a fresh per-user salt to store on models.User at
// registration time.
func NewSalt() (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", apierr.Wrap(apierr.Internal, "generate user salt", err)
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

func (v *Vault) deriveKey(userSalt string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(userSalt)
	if err != nil {
		return nil, apierr.Wrap(apierr.EncryptionFailed, "decode user salt", err)
	}
	return argon2.IDKey(v.masterKey, salt, 1, 64*1024, 4, keySize), nil
}

// Encrypt returns an opaque authenticated ciphertext blob. userSalt is the
// owning User.EncryptionSalt.
func (v *Vault) Encrypt(plain []byte, userSalt string) ([]byte, error) {
	key, err := v.deriveKey(userSalt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "init AEAD", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, apierr.Wrap(apierr.Internal, "generate nonce", err)
	}
	sealed := aead.Seal(nil, nonce, plain, nil)
	out := make([]byte, 4+len(nonce)+len(sealed))
	binary.BigEndian.PutUint32(out[:4], uint32(len(nonce)))
	copy(out[4:], nonce)
	copy(out[4+len(nonce):], sealed)
	return out, nil
}

// Decrypt reverses Encrypt for the same userSalt. Decryption with a
// mismatched salt (a different user's key) always fails — this is the
// mechanism behind §8 property 7's cross-user isolation guarantee.
func (v *Vault) Decrypt(blob []byte, userSalt string) ([]byte, error) {
	if len(blob) < 4 {
		return nil, apierr.New(apierr.EncryptionFailed, "ciphertext too short")
	}
	key, err := v.deriveKey(userSalt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "init AEAD", err)
	}
	nonceLen := int(binary.BigEndian.Uint32(blob[:4]))
	if len(blob) < 4+nonceLen {
		return nil, apierr.New(apierr.EncryptionFailed, "malformed ciphertext")
	}
	nonce := blob[4 : 4+nonceLen]
	sealed := blob[4+nonceLen:]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, apierr.Wrap(apierr.EncryptionFailed, "decrypt failed", err)
	}
	return plain, nil
}

// Redact produces a stable, non-reversible mask for read paths that expose
// provider/wallet lists without revealing keys (e.g. "sk-a...a91f").
func Redact(id string) string {
	if len(id) <= 8 {
		return "****"
	}
	return id[:4] + "..." + id[len(id)-4:]
}

var ErrEmptyPlaintext = errors.New("vault: refusing to encrypt empty plaintext")
