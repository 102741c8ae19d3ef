package pool

import (
	"testing"
	"time"
)

func TestBufferPrependAppend(t *testing.T) {
	b := NewBuffer(64, 16)
	if b.Headroom() != 16 {
		t.Fatalf("headroom got %d; expected 16", b.Headroom())
	}
	payload := b.Append(4)
	copy(payload, "data")
	hdr, err := b.Prepend(8)
	if err != nil {
		t.Fatal(err)
	}
	copy(hdr, "headerxx")
	if got := string(b.Bytes()); got != "headerxxdata" {
		t.Errorf("bytes got %q", got)
	}
	if b.Len() != 12 || b.Headroom() != 8 {
		t.Errorf("len=%d headroom=%d after claims", b.Len(), b.Headroom())
	}
	if _, err := b.Prepend(9); err == nil {
		t.Error("prepend past headroom should fail")
	}
	b.Reset()
	if b.Len() != 0 || b.Headroom() != 16 {
		t.Errorf("len=%d headroom=%d after reset", b.Len(), b.Headroom())
	}
}

func TestBufferAppendCapacity(t *testing.T) {
	b := NewBuffer(4, 0)
	if b.Append(5) != nil {
		t.Error("append past capacity should fail")
	}
	if got := b.Append(4); len(got) != 4 {
		t.Errorf("append got len %d", len(got))
	}
}

func TestPoolGet(t *testing.T) {
	p := New(2, 32, 8)
	if p.Available() != 2 {
		t.Fatalf("available got %d", p.Available())
	}
	a, err := p.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Get(0); err != ErrNoBuffers {
		t.Errorf("drained pool got %v; expected ErrNoBuffers", err)
	}
	if _, err := p.Get(5 * time.Millisecond); err != ErrNoBuffers {
		t.Errorf("timed out get got %v; expected ErrNoBuffers", err)
	}
	a.Free()
	b.Free()
	if p.Available() != 2 {
		t.Errorf("available after free got %d", p.Available())
	}
}

func TestPoolGetBlocks(t *testing.T) {
	p := New(1, 32, 0)
	b, _ := p.Get(0)
	done := make(chan error, 1)
	go func() {
		got, err := p.Get(-1)
		if err == nil {
			got.Free()
		}
		done <- err
	}()
	time.Sleep(5 * time.Millisecond)
	b.Free()
	if err := <-done; err != nil {
		t.Fatalf("blocking get: %v", err)
	}
}

func TestBufferDoubleFree(t *testing.T) {
	p := New(1, 32, 0)
	b, _ := p.Get(0)
	b.Free()
	b.Free()
	if p.Available() != 1 {
		t.Errorf("double free corrupted pool: available %d", p.Available())
	}
}
