// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package crypto

import (
	"fmt"
	"reflect"

	"github.com/probechain/pr47/internal/al31f/bytecode"
	"github.com/probechain/pr47/internal/al31f/heap"
	"github.com/probechain/pr47/internal/al31f/tyck"
	"github.com/probechain/pr47/internal/al31f/value"
)

// Functions builds the FFIFunc table a CompiledProgram wires up to expose
// this package's primitives to scripts (spec.md §9's FFI binding example).
// pool is used to intern the signature descriptors so repeated registration
// (e.g. across test programs) shares TyckInfo pointers.
func Functions(pool *tyck.Pool) []bytecode.FFIFunc {
	bytesType := pool.CreatePlainType(reflect.TypeOf((*[]byte)(nil)))
	intType := pool.CreatePlainType(reflect.TypeOf(int64(0)))
	boolType := pool.CreatePlainType(reflect.TypeOf(false))
	sig := func(params ...*tyck.TyckInfo) *tyck.TyckInfo {
		return pool.CreateFunctionType(params, []*tyck.TyckInfo{boolType}, nil)
	}
	bytesSig := func(params ...*tyck.TyckInfo) *tyck.TyckInfo {
		return pool.CreateFunctionType(params, []*tyck.TyckInfo{bytesType}, nil)
	}

	return []bytecode.FFIFunc{
		{
			Name:      "keccak256",
			Signature: bytesSig(bytesType),
			Entry: func(ctx bytecode.VMContext, args []value.Value, ret []*value.Value) error {
				data := bytesOf(args[0])
				digest := Keccak256(data)
				*ret[0] = wrapBytes(ctx, digest[:])
				return nil
			},
		},
		{
			Name:      "shake256",
			Signature: bytesSig(bytesType, intType),
			Entry: func(ctx bytecode.VMContext, args []value.Value, ret []*value.Value) error {
				data := bytesOf(args[0])
				n := int(args[1].Int())
				*ret[0] = wrapBytes(ctx, SHAKE256(data, n))
				return nil
			},
		},
		{
			Name:      "verify_ml_dsa",
			Signature: sig(bytesType, bytesType, bytesType),
			Entry: func(ctx bytecode.VMContext, args []value.Value, ret []*value.Value) error {
				ok, err := VerifyMLDSA(bytesOf(args[0]), bytesOf(args[1]), bytesOf(args[2]))
				if err != nil {
					ok = false
				}
				*ret[0] = value.NewBool(ok)
				return nil
			},
		},
		{
			Name:      "verify_slh_dsa",
			Signature: sig(bytesType, bytesType, bytesType),
			Entry: func(ctx bytecode.VMContext, args []value.Value, ret []*value.Value) error {
				ok, err := VerifySLHDSA(bytesOf(args[0]), bytesOf(args[1]), bytesOf(args[2]))
				if err != nil {
					ok = false
				}
				*ret[0] = value.NewBool(ok)
				return nil
			},
		},
		{
			Name:      "recover_secp256k1",
			Signature: bytesSig(bytesType, bytesType),
			Entry: func(ctx bytecode.VMContext, args []value.Value, ret []*value.Value) error {
				digestSl, sigSl := bytesOf(args[0]), bytesOf(args[1])
				if len(digestSl) != 32 || len(sigSl) != 65 {
					return fmt.Errorf("crypto: recover_secp256k1: want 32-byte digest and 65-byte signature, got %d and %d bytes", len(digestSl), len(sigSl))
				}
				var digest [32]byte
				var sig [65]byte
				copy(digest[:], digestSl)
				copy(sig[:], sigSl)
				pub, err := RecoverSecp256k1(digest, sig)
				if err != nil {
					return err
				}
				*ret[0] = wrapBytes(ctx, pub[:])
				return nil
			},
		},
	}
}

// bytesOf unwraps a Ref Value holding a *[]byte wrapper back to a []byte.
func bytesOf(v value.Value) []byte {
	w, ok := v.Ptr().(*heap.Wrapper)
	if !ok {
		return nil
	}
	b, _ := w.Data().(*[]byte)
	if b == nil {
		return nil
	}
	return *b
}

// wrapBytes allocates a fresh heap-managed []byte and registers it with the
// VM's collector, returning the Ref Value scripts see.
func wrapBytes(ctx bytecode.VMContext, data []byte) value.Value {
	buf := append([]byte(nil), data...)
	w := heap.New(&buf, nil, func() {})
	v := value.NewRef(w, value.RefMeta{})
	ctx.AddHeapManaged(v)
	return v
}
