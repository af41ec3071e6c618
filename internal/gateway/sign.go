package gateway

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/arcsign/opsengine/internal/engineext"
)

// burnIntentDigest computes the keccak256 digest a delegate key signs over
// to authorize a burn intent. The wire fields are joined in a fixed,
// human-auditable order so the digest is reproducible independent of any
// struct field ordering.
func burnIntentDigest(intent *engineext.SignableBurnIntent) []byte {
	msg := fmt.Sprintf("burn-intent|%s|%s|%s|%s|%s|%s",
		intent.SourceChain, intent.DestChain, intent.AmountMinor.String(),
		intent.Depositor, intent.Recipient, intent.MaxFeeMinor.String())
	return crypto.Keccak256([]byte(msg))
}

// mintDigest computes the digest a relayer key signs over to authorize
// executing a mint against a previously attested burn intent.
func mintDigest(destChain, attestation, operatorSignature string) []byte {
	msg := fmt.Sprintf("mint|%s|%s|%s", destChain, attestation, operatorSignature)
	return crypto.Keccak256([]byte(msg))
}

// signDigest signs digest with the ECDSA key encoded in hexKey (with or
// without a 0x prefix) and returns the 65-byte signature hex-encoded with a
// 0x prefix.
func signDigest(digest []byte, hexKey string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return "", fmt.Errorf("sign failed: %w", err)
	}
	return "0x" + fmt.Sprintf("%x", sig), nil
}
