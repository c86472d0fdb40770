package hostfunc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/qbradley/hyperlight/call"
)

// KVConfig bounds the in-memory store.
type KVConfig struct {
	MaxKeySize   int // bytes per key
	MaxValueSize int // bytes per value
	MaxEntries   int // distinct keys
}

// DefaultKVConfig returns the default store limits.
func DefaultKVConfig() KVConfig {
	return KVConfig{
		MaxKeySize:   256,
		MaxValueSize: 64 * 1024,
		MaxEntries:   1024,
	}
}

// KV is an in-memory key-value store exposed to guests as a set of host
// functions. Data lives for the lifetime of the store, not the guest:
// restoring a sandbox snapshot does not roll it back.
type KV struct {
	cfg  KVConfig
	mu   sync.RWMutex
	data map[string][]byte
}

func NewKV(cfg KVConfig) *KV {
	return &KV{cfg: cfg, data: make(map[string][]byte)}
}

// Register adds the store's functions to reg: KVGet, KVSet, KVDelete,
// KVKeys.
func (kv *KV) Register(reg *Registry) {
	reg.Register("KVGet", []call.Type{call.TypeString}, call.TypeBytes, kv.Get)
	reg.Register("KVSet", []call.Type{call.TypeString, call.TypeBytes}, call.TypeVoid, kv.Set)
	reg.Register("KVDelete", []call.Type{call.TypeString}, call.TypeVoid, kv.Delete)
	reg.Register("KVKeys", nil, call.TypeString, kv.Keys)
}

// Get returns the value stored under the key. A missing key is an error,
// never an empty value.
func (kv *KV) Get(ctx context.Context, args []call.Value) (call.Value, error) {
	key, err := args[0].AsString()
	if err != nil {
		return call.Void, err
	}

	kv.mu.RLock()
	val, ok := kv.data[key]
	kv.mu.RUnlock()

	if !ok {
		return call.Void, fmt.Errorf("key %q not found", key)
	}
	return call.Bytes(val), nil
}

// Set stores value under key, enforcing the configured limits.
func (kv *KV) Set(ctx context.Context, args []call.Value) (call.Value, error) {
	key, err := args[0].AsString()
	if err != nil {
		return call.Void, err
	}
	val, err := args[1].AsBytes()
	if err != nil {
		return call.Void, err
	}

	if kv.cfg.MaxKeySize > 0 && len(key) > kv.cfg.MaxKeySize {
		return call.Void, fmt.Errorf("key exceeds %d bytes", kv.cfg.MaxKeySize)
	}
	if kv.cfg.MaxValueSize > 0 && len(val) > kv.cfg.MaxValueSize {
		return call.Void, fmt.Errorf("value exceeds %d bytes", kv.cfg.MaxValueSize)
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()

	if _, exists := kv.data[key]; !exists {
		if kv.cfg.MaxEntries > 0 && len(kv.data) >= kv.cfg.MaxEntries {
			return call.Void, fmt.Errorf("store full: %d entries", kv.cfg.MaxEntries)
		}
	}
	kv.data[key] = append([]byte(nil), val...)
	return call.Void, nil
}

// Delete removes the key. Deleting an absent key is not an error.
func (kv *KV) Delete(ctx context.Context, args []call.Value) (call.Value, error) {
	key, err := args[0].AsString()
	if err != nil {
		return call.Void, err
	}

	kv.mu.Lock()
	delete(kv.data, key)
	kv.mu.Unlock()

	return call.Void, nil
}

// Keys returns all keys sorted and newline-joined. The boundary carries
// scalars only, so the list crosses as one string.
func (kv *KV) Keys(ctx context.Context, args []call.Value) (call.Value, error) {
	kv.mu.RLock()
	keys := make([]string, 0, len(kv.data))
	for k := range kv.data {
		keys = append(keys, k)
	}
	kv.mu.RUnlock()

	sort.Strings(keys)
	return call.String(strings.Join(keys, "\n")), nil
}

// Len reports the number of stored keys.
func (kv *KV) Len() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return len(kv.data)
}
