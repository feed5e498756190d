// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package tyck

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru"
)

// Pool interns TyckInfo descriptors so that structurally identical
// descriptors share a single pointer (spec.md §4.7's "pool ensures
// structural equality = pointer equality").
//
// Lookup goes first through an ARC cache of recently interned Container/
// Function descriptors (the variants whose structural keys can get long),
// then through the canonical byKey map. A byte-keyed fastcache records every
// key interned so far and serves only as a consistency check against byKey.
// byKey never evicts, so the number of interned descriptors is unbounded;
// the ARC size limits only that cache.
type Pool struct {
	mu sync.Mutex

	// byKey is canonical storage: every interned descriptor lives here,
	// keyed by its structural encoding, and it is never evicted.
	byKey map[string]*TyckInfo

	cache *fastcache.Cache
	lru   *lru.ARCCache

	anySingleton *TyckInfo
}

// NewPool creates an interning pool. cacheBytes sizes the fastcache backing
// store (0 selects a conservative default); lruSize bounds the Container/
// Function secondary cache (0 selects a conservative default).
func NewPool(cacheBytes int, lruSize int) *Pool {
	if cacheBytes <= 0 {
		cacheBytes = 4 * 1024 * 1024
	}
	if lruSize <= 0 {
		lruSize = 1024
	}
	l, _ := lru.NewARC(lruSize)
	p := &Pool{
		byKey: make(map[string]*TyckInfo),
		cache: fastcache.New(cacheBytes),
		lru:   l,
	}
	p.anySingleton = &TyckInfo{Variant: VAny, key: "any"}
	p.byKey["any"] = p.anySingleton
	return p
}

// intern returns the canonical *TyckInfo for key, creating and storing build()
// if this is the first time key has been seen.
//
// Container and Function keys can get long (nested params joined with
// separators), so those two variants get a real second-level lookup through
// the ARC cache ahead of the authoritative byKey map: a hit there avoids
// hashing the full key string against the map a second time for the call
// patterns that produce the longest keys. Plain/Nullable keys are short
// enough that byKey alone is the fast path.
func (p *Pool) intern(key string, build func() *TyckInfo) *TyckInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, ok := p.lru.Get(key); ok {
		return cached.(*TyckInfo)
	}
	if existing, ok := p.byKey[key]; ok {
		return existing
	}
	if _, seen := p.cache.HasGet(nil, []byte(key)); seen {
		// byKey is canonical and never evicts, so a key fastcache remembers
		// seeing but that is missing from both the ARC cache and byKey means
		// the two stores have fallen out of sync — a pool bug, not a normal
		// cache miss.
		panic(fmt.Sprintf("tyck: pool cache desync for key %q", key))
	}
	p.cache.Set([]byte(key), []byte{1})

	info := build()
	info.key = key
	p.byKey[key] = info
	if info.Variant == VContainer || info.Variant == VFunction {
		p.lru.Add(key, info)
	}
	return info
}

// CreateAnyType returns the single universal-top descriptor.
func (p *Pool) CreateAnyType() *TyckInfo { return p.anySingleton }

// CreatePlainType returns the monomorphic primitive descriptor for typeID.
func (p *Pool) CreatePlainType(typeID reflect.Type) *TyckInfo {
	key := "plain:" + typeID.String()
	return p.intern(key, func() *TyckInfo {
		return &TyckInfo{Variant: VPlain, TypeID: typeID}
	})
}

// CreateNullableType wraps inner in a Nullable descriptor.
func (p *Pool) CreateNullableType(inner *TyckInfo) *TyckInfo {
	key := "nullable:" + inner.key
	return p.intern(key, func() *TyckInfo {
		return &TyckInfo{Variant: VNullable, Inner: inner}
	})
}

// CreateContainerType returns a generic-container descriptor for typeID
// parameterized by params.
func (p *Pool) CreateContainerType(typeID reflect.Type, params []*TyckInfo) *TyckInfo {
	key := "container:" + typeID.String() + ":" + joinKeys(params)
	return p.intern(key, func() *TyckInfo {
		return &TyckInfo{Variant: VContainer, TypeID: typeID, Params: append([]*TyckInfo(nil), params...)}
	})
}

// CreateFunctionType returns a function-signature descriptor.
func (p *Pool) CreateFunctionType(params, returns []*TyckInfo, exceptions []reflect.Type) *TyckInfo {
	key := "fn:" + joinKeys(params) + "->" + joinKeys(returns) + "!" + joinTypes(exceptions)
	return p.intern(key, func() *TyckInfo {
		return &TyckInfo{
			Variant:    VFunction,
			Params:     append([]*TyckInfo(nil), params...),
			Returns:    append([]*TyckInfo(nil), returns...),
			Exceptions: append([]reflect.Type(nil), exceptions...),
		}
	})
}

// Len returns the number of distinct descriptors currently interned.
// Primarily for tests.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byKey)
}

func joinKeys(ts []*TyckInfo) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.key
	}
	return strings.Join(parts, ",")
}

func joinTypes(ts []reflect.Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = fmt.Sprintf("%v", t)
	}
	return strings.Join(parts, ",")
}
