// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package crypto

import "testing"

func TestKeccak256Deterministic(t *testing.T) {
	a := Keccak256([]byte("probe"))
	b := Keccak256([]byte("probe"))
	if a != b {
		t.Fatalf("Keccak256 is not deterministic")
	}
	c := Keccak256([]byte("probe2"))
	if a == c {
		t.Fatalf("distinct inputs produced the same digest")
	}
}

func TestSHAKE256RespectsOutputLength(t *testing.T) {
	for _, n := range []int{0, 1, 32, 64, 200} {
		out := SHAKE256([]byte("payload"), n)
		if len(out) != n {
			t.Fatalf("SHAKE256(%d) returned %d bytes", n, len(out))
		}
	}
}

func TestVerifyMLDSARejectsGarbageInputs(t *testing.T) {
	ok, err := VerifyMLDSA([]byte("msg"), []byte("not-a-signature"), []byte("not-a-key"))
	if err == nil && ok {
		t.Fatalf("garbage public key should not verify")
	}
}

func TestRecoverSecp256k1RejectsGarbageSignature(t *testing.T) {
	var digest [32]byte
	var sig [65]byte // all-zero signature is not a valid recoverable signature
	if _, err := RecoverSecp256k1(digest, sig); err == nil {
		t.Fatalf("expected recovery of an all-zero signature to fail")
	}
}
