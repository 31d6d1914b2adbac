package crypto

import (
	"errors"
	"testing"
)

func TestWalletSignerLockedByDefault(t *testing.T) {
	signer := NewWalletSigner()
	if _, err := signer.Sign([]byte("msg")); !errors.Is(err, ErrWalletLocked) {
		t.Fatalf("expected ErrWalletLocked, got %v", err)
	}
	if _, err := signer.PubKeyHex(); !errors.Is(err, ErrWalletLocked) {
		t.Fatalf("expected ErrWalletLocked for pubkey, got %v", err)
	}
	if signer.Unlocked() {
		t.Fatalf("fresh signer should report locked")
	}
}

func TestSignAndVerify(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := NewUnlockedSigner(key)
	msg := []byte("challenge-nonce-1234")
	sig, err := signer.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	pub, err := signer.PubKeyHex()
	if err != nil {
		t.Fatalf("pubkey: %v", err)
	}
	if !VerifySignature(pub, msg, sig) {
		t.Fatalf("signature did not verify")
	}
	if VerifySignature(pub, []byte("other message"), sig) {
		t.Fatalf("signature verified against wrong message")
	}
}

func TestLockDiscardsKey(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := NewUnlockedSigner(key)
	signer.Lock()
	if _, err := signer.Sign([]byte("msg")); !errors.Is(err, ErrWalletLocked) {
		t.Fatalf("expected ErrWalletLocked after Lock, got %v", err)
	}
}

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}
	if decoded.Prefix() != QNetPrefix {
		t.Fatalf("unexpected prefix %q", decoded.Prefix())
	}
	if string(decoded.Bytes()) != string(addr.Bytes()) {
		t.Fatalf("address bytes changed across round trip")
	}
}
