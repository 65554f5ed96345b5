// Package kv defines the key-value contract the session engine persists
// documents through, plus an in-memory implementation and a codec-backed
// adapter for byte-oriented backends.
//
// Responsibilities:
//   - Store only gets, sets and deletes a single document for a single key.
//     There is no cross-operation atomicity and no compare-and-swap.
//   - BytesStore is the primitive surface of a backend client (Redis,
//     Memcached). NewCodecStore pairs it with a codec.Codec so serialization
//     is selected per backend by injection.
//   - Every backend failure surfaces as *StoreError carrying the primitive and
//     key; undecodable payloads wrap ErrMalformed.
//
// Data flow:
//
//	backend client -> BytesStore -> NewCodecStore(codec) -> Store -> automerge.Engine
//
// TTL is advisory expiry reapplied on every successful Set.
package kv
