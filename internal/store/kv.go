// Package store persists small pieces of application state as JSON under
// string keys, with an optional version tag per key.
//
// A key saved with a version tag is only honored on load when the tag still
// matches the version the caller expects. Bumping the expected version is a
// one-way reset: old data is discarded, never migrated.
//
//	articles := store.Load(kv, "digibox_news", seed, store.V(3))
//	store.Save(kv, "digibox_news", articles, store.V(3))
package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"digibox/internal/logging"
)

// VersionSuffix is appended to a key to form the key holding its version tag.
const VersionSuffix = "_version"

// Backend is the raw string storage underneath the KV store.
type Backend interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Version is an optional expected version for a key.
type Version struct {
	tag string
	set bool
}

// Unversioned disables the version gate for a load or save.
var Unversioned = Version{}

// V returns an expected version tag.
func V(n int) Version {
	return Version{tag: strconv.Itoa(n), set: true}
}

// IsSet reports whether a version is expected.
func (v Version) IsSet() bool { return v.set }

func (v Version) String() string {
	if !v.set {
		return "unversioned"
	}
	return v.tag
}

// StorageError describes a failed read or write. These are logged and
// swallowed by Load and Save; the caller continues with in-memory state.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// KV is the versioned key-value store.
type KV struct {
	backend Backend
}

// New wraps a backend.
func New(b Backend) *KV {
	return &KV{backend: b}
}

// Close closes the underlying backend.
func (kv *KV) Close() error { return kv.backend.Close() }

// VersionKey returns the key that holds key's version tag.
func VersionKey(key string) string { return key + VersionSuffix }

// Load returns the value stored under key, or def when the stored version
// tag differs from ver (absent tag included), when nothing is stored, or when
// the stored text is not valid JSON for T.
func Load[T any](kv *KV, key string, def T, ver Version) T {
	if ver.IsSet() {
		tag, ok, err := kv.backend.Get(VersionKey(key))
		if err != nil {
			logStorageError(&StorageError{Op: "load", Key: VersionKey(key), Err: err})
			return def
		}
		if !ok || tag != ver.tag {
			logging.StoreDebug("Version gate reset %s: stored=%q expected=%s", key, tag, ver)
			return def
		}
	}

	raw, ok, err := kv.backend.Get(key)
	if err != nil {
		logStorageError(&StorageError{Op: "load", Key: key, Err: err})
		return def
	}
	if !ok {
		return def
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		logging.StoreWarn("Discarding undecodable value for %s: %v", key, err)
		return def
	}
	return out
}

// Save encodes value as JSON and writes it under key, then writes the version
// tag when ver is set. Failures are logged and returned, never fatal.
func Save(kv *KV, key string, value any, ver Version) error {
	data, err := json.Marshal(value)
	if err != nil {
		serr := &StorageError{Op: "encode", Key: key, Err: err}
		logStorageError(serr)
		return serr
	}
	if err := kv.backend.Set(key, string(data)); err != nil {
		serr := &StorageError{Op: "save", Key: key, Err: err}
		logStorageError(serr)
		return serr
	}
	if ver.IsSet() {
		if err := kv.backend.Set(VersionKey(key), ver.tag); err != nil {
			serr := &StorageError{Op: "save", Key: VersionKey(key), Err: err}
			logStorageError(serr)
			return serr
		}
	}
	logging.StoreDebug("Saved %s (%d bytes, version %s)", key, len(data), ver)
	return nil
}

// LoadString reads a plain unversioned string setting.
func LoadString(kv *KV, key, def string) string {
	v, ok, err := kv.backend.Get(key)
	if err != nil {
		logStorageError(&StorageError{Op: "load", Key: key, Err: err})
		return def
	}
	if !ok {
		return def
	}
	return v
}

// SaveString writes a plain unversioned string setting. An empty value
// removes the key.
func SaveString(kv *KV, key, value string) error {
	var err error
	if value == "" {
		err = kv.backend.Delete(key)
	} else {
		err = kv.backend.Set(key, value)
	}
	if err != nil {
		serr := &StorageError{Op: "save", Key: key, Err: err}
		logStorageError(serr)
		return serr
	}
	return nil
}

func logStorageError(err *StorageError) {
	logging.StoreError("%v", err)
}
