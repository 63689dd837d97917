package ledger

import (
	"golang.org/x/crypto/ed25519"
)

// Verifier is the signature capability consumed by the validator
type Verifier interface {
	Verify(owner ed25519.PublicKey, msg, sig []byte) bool
}

type VerifierFunc func(owner ed25519.PublicKey, msg, sig []byte) bool

func (f VerifierFunc) Verify(owner ed25519.PublicKey, msg, sig []byte) bool {
	return f(owner, msg, sig)
}

type ed25519Verifier struct{}

// ED25519Verifier is the default verifier
var ED25519Verifier Verifier = ed25519Verifier{}

func (ed25519Verifier) Verify(owner ed25519.PublicKey, msg, sig []byte) bool {
	if len(owner) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(owner, msg, sig)
}
