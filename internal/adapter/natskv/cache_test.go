package natskv

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
)

// fakeKV overrides the KeyValue methods the cache uses; any other call panics
// on the nil embedded interface.
type fakeKV struct {
	jetstream.KeyValue
	data map[string][]byte
	err  error
}

type fakeEntry struct {
	jetstream.KeyValueEntry
	value []byte
}

func (e fakeEntry) Value() []byte { return e.value }

func (f *fakeKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return fakeEntry{value: v}, nil
}

func (f *fakeKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.data[key] = value
	return uint64(len(f.data)), nil
}

func (f *fakeKV) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	if _, ok := f.data[key]; !ok {
		return jetstream.ErrKeyNotFound
	}
	delete(f.data, key)
	return nil
}

func TestKeyAlphabet(t *testing.T) {
	k := Key("first.last+tag@example.com")
	if strings.ContainsAny(k, "@+ *>") {
		t.Errorf("Key produced invalid characters: %q", k)
	}
	if Key("a@example.com") == Key("b@example.com") {
		t.Error("distinct inputs must produce distinct keys")
	}
}

func TestCache_RoundTrip(t *testing.T) {
	kv := &fakeKV{data: map[string][]byte{}}
	c := New(kv)
	ctx := context.Background()

	if err := c.Set(ctx, "alice@example.com", []byte("sent"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := kv.data[Key("alice@example.com")]; !ok {
		t.Fatal("expected encoded key in bucket")
	}

	val, ok, err := c.Get(ctx, "alice@example.com")
	if err != nil || !ok || string(val) != "sent" {
		t.Fatalf("Get = %q %v %v", val, ok, err)
	}

	if err := c.Delete(ctx, "alice@example.com"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Delete(ctx, "alice@example.com"); err != nil {
		t.Fatalf("Delete of missing key should be nil, got %v", err)
	}
	if _, ok, _ := c.Get(ctx, "alice@example.com"); ok {
		t.Error("expected miss after delete")
	}
}

func TestCache_GetError(t *testing.T) {
	c := New(&fakeKV{data: map[string][]byte{}, err: errors.New("timeout")})
	if _, _, err := c.Get(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}
