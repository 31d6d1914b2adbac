package crypto

import (
	"encoding/hex"
	"errors"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"lukechampine.com/blake3"
)

// ErrWalletLocked indicates that no decrypted key is available. Callers should
// prompt the operator to unlock instead of retrying.
var ErrWalletLocked = errors.New("crypto: wallet locked")

// Signer produces signatures over arbitrary messages using the wallet key.
// Implementations must be safe for concurrent use; at most one signing
// operation may hold the key at a time.
type Signer interface {
	Sign(message []byte) ([]byte, error)
	PubKeyHex() (string, error)
	Address() (Address, error)
}

// Digest hashes a message to the 32-byte form expected by the signature
// scheme. BLAKE3 is used for every challenge and reactivation payload.
func Digest(message []byte) [32]byte {
	return blake3.Sum256(message)
}

// WalletSigner holds the wallet key behind a lock/unlock gate. The mutex
// serialises signing so only one operation borrows the key at a time.
type WalletSigner struct {
	mu  sync.Mutex
	key *PrivateKey
}

// NewWalletSigner returns a signer in the locked state.
func NewWalletSigner() *WalletSigner {
	return &WalletSigner{}
}

// NewUnlockedSigner wraps an already-decrypted key. Used by tests and the CLI.
func NewUnlockedSigner(key *PrivateKey) *WalletSigner {
	return &WalletSigner{key: key}
}

// UnlockFromKeystore decrypts the keystore file and arms the signer.
func (s *WalletSigner) UnlockFromKeystore(path, passphrase string) error {
	key, err := LoadFromKeystore(path, passphrase)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.key = key
	s.mu.Unlock()
	return nil
}

// Lock discards the decrypted key. Subsequent signs fail with ErrWalletLocked.
func (s *WalletSigner) Lock() {
	s.mu.Lock()
	s.key = nil
	s.mu.Unlock()
}

// Unlocked reports whether a key is currently available.
func (s *WalletSigner) Unlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key != nil
}

// Sign hashes the message with BLAKE3 and signs the digest. Returns
// ErrWalletLocked when the key is unavailable.
func (s *WalletSigner) Sign(message []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return nil, ErrWalletLocked
	}
	digest := Digest(message)
	return ethcrypto.Sign(digest[:], s.key.PrivateKey)
}

// PubKeyHex returns the compressed public key of the armed wallet key.
func (s *WalletSigner) PubKeyHex() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return "", ErrWalletLocked
	}
	return s.key.PubKey().CompressedHex(), nil
}

// Address returns the bech32 address of the armed wallet key.
func (s *WalletSigner) Address() (Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return Address{}, ErrWalletLocked
	}
	return s.key.PubKey().Address(), nil
}

// VerifySignature checks a signature produced by Sign against the compressed
// public key used during registration.
func VerifySignature(pubKeyHex string, message, sig []byte) bool {
	pub, err := decodeCompressedHex(pubKeyHex)
	if err != nil {
		return false
	}
	if len(sig) == 65 {
		sig = sig[:64] // drop the recovery id
	}
	digest := Digest(message)
	return ethcrypto.VerifySignature(pub, digest[:], sig)
}

func decodeCompressedHex(pubKeyHex string) ([]byte, error) {
	pub, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return nil, err
	}
	if _, err := ethcrypto.DecompressPubkey(pub); err != nil {
		return nil, err
	}
	return pub, nil
}
