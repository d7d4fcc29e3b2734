package provider

import (
	"errors"
	"testing"
)

func TestRegistryRoundTrip(t *testing.T) {
	name := "test-vendor"
	t.Cleanup(func() { Unregister(name) })

	Register(name, func(cfg Config) (Client, error) {
		return NewMockClient("ok").WithName(name), nil
	})

	if !IsRegistered(name) {
		t.Fatalf("%q not registered", name)
	}

	client, err := New(name, Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	if client.Provider() != name {
		t.Errorf("Provider() = %q, want %q", client.Provider(), name)
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	_, err := New("no-such-vendor", Config{})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("err = %v, want ErrUnknownProvider", err)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	name := "dup-vendor"
	t.Cleanup(func() { Unregister(name) })

	factory := func(cfg Config) (Client, error) { return NewMockClient(""), nil }
	Register(name, factory)

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register did not panic")
		}
	}()
	Register(name, factory)
}

func TestAvailableSorted(t *testing.T) {
	for _, name := range []string{"zeta", "alpha"} {
		name := name
		t.Cleanup(func() { Unregister(name) })
		Register(name, func(cfg Config) (Client, error) { return NewMockClient(""), nil })
	}

	names := Available()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("Available() not sorted: %v", names)
		}
	}
}
