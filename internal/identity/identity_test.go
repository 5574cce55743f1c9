package identity

import (
	"context"
	"errors"
	"testing"
)

func TestStaticProvider(t *testing.T) {
	p := Static{Identity: Caller{ID: "u1", Name: "Alice"}}
	c, err := p.Caller(context.Background())
	if err != nil {
		t.Fatalf("caller: %v", err)
	}
	if c.ID != "u1" || c.Name != "Alice" {
		t.Fatalf("unexpected caller: %+v", c)
	}

	if _, err := (Static{}).Caller(context.Background()); !errors.Is(err, ErrNoCaller) {
		t.Fatalf("expected ErrNoCaller, got %v", err)
	}
}

func TestContextProviderRoundTrip(t *testing.T) {
	ctx := WithCaller(context.Background(), Caller{ID: "u2", Name: "Bob"})

	c, err := ContextProvider{}.Caller(ctx)
	if err != nil {
		t.Fatalf("caller: %v", err)
	}
	if c.ID != "u2" {
		t.Fatalf("unexpected caller: %+v", c)
	}

	if _, err := (ContextProvider{}).Caller(context.Background()); !errors.Is(err, ErrNoCaller) {
		t.Fatalf("expected ErrNoCaller on bare context, got %v", err)
	}

	// An empty ID is the same as no identity at all.
	empty := WithCaller(context.Background(), Caller{Name: "Ghost"})
	if _, err := (ContextProvider{}).Caller(empty); !errors.Is(err, ErrNoCaller) {
		t.Fatalf("expected ErrNoCaller for empty ID, got %v", err)
	}
}
