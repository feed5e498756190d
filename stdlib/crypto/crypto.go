// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package crypto provides the demo cryptographic FFI bindings host code
// registers with an executor.VMThread's CompiledProgram: Keccak-256 and
// SHAKE256 hashing, post-quantum (ML-DSA, SLH-DSA) signature verification,
// and secp256k1 public-key recovery (spec.md §9's "FFI bindings exercise a
// non-trivial host library" example set).
package crypto

import (
	"fmt"

	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/cloudflare/circl/sign/schemes"
	"golang.org/x/crypto/sha3"
)

// Keccak256 computes the Keccak-256 digest of data (the pre-standardization
// SHA-3 variant this teacher's node uses for addresses and tx hashes).
func Keccak256(data []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SHAKE256 computes an outputLen-byte SHAKE256 digest of data.
func SHAKE256(data []byte, outputLen int) []byte {
	h := sha3.NewShake256()
	h.Write(data)
	out := make([]byte, outputLen)
	_, _ = h.Read(out)
	return out
}

// VerifyMLDSA verifies an ML-DSA-65 (Dilithium3) signature over msg against
// a raw public key.
func VerifyMLDSA(msg, sig, pubkey []byte) (bool, error) {
	scheme := schemes.ByName("ML-DSA-65")
	if scheme == nil {
		return false, fmt.Errorf("crypto: ML-DSA-65 scheme unavailable")
	}
	pk, err := scheme.UnmarshalBinaryPublicKey(pubkey)
	if err != nil {
		return false, fmt.Errorf("crypto: bad ML-DSA public key: %w", err)
	}
	return scheme.Verify(pk, msg, sig, nil), nil
}

// VerifySLHDSA verifies an SLH-DSA-SHA2-128s (SPHINCS+) signature over msg
// against a raw public key.
func VerifySLHDSA(msg, sig, pubkey []byte) (bool, error) {
	scheme := schemes.ByName("SLH-DSA-SHA2-128s")
	if scheme == nil {
		return false, fmt.Errorf("crypto: SLH-DSA-SHA2-128s scheme unavailable")
	}
	pk, err := scheme.UnmarshalBinaryPublicKey(pubkey)
	if err != nil {
		return false, fmt.Errorf("crypto: bad SLH-DSA public key: %w", err)
	}
	return scheme.Verify(pk, msg, sig, nil), nil
}

// RecoverSecp256k1 recovers the compressed public key from a 65-byte
// compact recoverable signature (recovery header byte, then r, then s, the
// layout btcec's RecoverCompact reads) over a 32-byte digest.
func RecoverSecp256k1(digest [32]byte, sig [65]byte) ([33]byte, error) {
	pub, _, err := btcecdsa.RecoverCompact(sig[:], digest[:])
	if err != nil {
		return [33]byte{}, fmt.Errorf("crypto: secp256k1 recovery failed: %w", err)
	}
	var out [33]byte
	copy(out[:], pub.SerializeCompressed())
	return out, nil
}
