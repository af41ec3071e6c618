// Package delegatekeys is a concrete engineext.DelegateKeySource: it holds
// one Argon2id+AES-256-GCM encrypted delegate private key per user and
// decrypts on demand. The scheme is the same one arcsign's
// internal/services/crypto.EncryptMnemonic/DecryptMnemonic applies to BIP39
// mnemonics, generalized here from "mnemonic" to "delegate signing key":
// same KDF parameters, same AEAD, same zero-on-use discipline. Passphrase
// strength is enforced by the same policy arcsign's wallet CLI used for
// mnemonic passwords (internal/utils.ValidatePassword).
package delegatekeys

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/utils"
)

const (
	argon2Time    = 4
	argon2Memory  = 256 * 1024 // KiB
	argon2Threads = 4
	argon2KeyLen  = 32
	argon2SaltLen = 16
	aesNonceLen   = 12
)

// EncryptedKey is one user's delegate private key at rest.
type EncryptedKey struct {
	Salt       []byte
	Nonce      []byte
	Ciphertext []byte
}

// Encrypt seals delegatePrivKey under passphrase, deriving the AES-256 key
// via Argon2id.
func Encrypt(delegatePrivKey, passphrase string) (*EncryptedKey, error) {
	if err := utils.ValidatePassword(passphrase); err != nil {
		return nil, fmt.Errorf("delegatekeys: weak passphrase: %w", err)
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("delegatekeys: failed to generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	defer clearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("delegatekeys: failed to build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("delegatekeys: failed to build GCM: %w", err)
	}
	nonce := make([]byte, aesNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("delegatekeys: failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(delegatePrivKey), nil)
	return &EncryptedKey{Salt: salt, Nonce: nonce, Ciphertext: ciphertext}, nil
}

// Decrypt recovers the delegate private key from enc under passphrase.
func Decrypt(enc *EncryptedKey, passphrase string) (string, error) {
	if enc == nil {
		return "", errors.New("delegatekeys: no encrypted key on file")
	}
	key := argon2.IDKey([]byte(passphrase), enc.Salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	defer clearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("delegatekeys: failed to build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("delegatekeys: failed to build GCM: %w", err)
	}
	plaintext, err := gcm.Open(nil, enc.Nonce, enc.Ciphertext, nil)
	if err != nil {
		return "", errors.New("delegatekeys: wrong passphrase or corrupted key")
	}
	defer clearBytes(plaintext)
	return string(plaintext), nil
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Source is an in-memory engineext.DelegateKeySource keyed by user id. A
// real deployment would back this by a secrets manager or HSM; the engine
// treats delegate-key custody as an external collaborator (spec.md §1) and
// only needs the DelegateKeyFor contract.
type Source struct {
	mu         sync.RWMutex
	keys       map[string]*EncryptedKey
	passphrase string
}

// NewSource builds a Source that decrypts every key with the same
// passphrase (e.g. one pulled from a KMS-backed secret at process start).
func NewSource(passphrase string) *Source {
	return &Source{keys: make(map[string]*EncryptedKey), passphrase: passphrase}
}

// Put registers userID's encrypted delegate key.
func (s *Source) Put(userID string, enc *EncryptedKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[userID] = enc
}

// DelegateKeyFor decrypts and returns userID's delegate private key. The
// caller uses it once and discards it; Source never caches the decrypted
// value.
func (s *Source) DelegateKeyFor(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	enc, ok := s.keys[userID]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("delegatekeys: no delegate key on file for user %s", userID)
	}
	return Decrypt(enc, s.passphrase)
}

var _ engineext.DelegateKeySource = (*Source)(nil)
