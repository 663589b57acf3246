package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPipeConns(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	c0, c1 := p.Conns(ConnConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := c0.Send([]byte("hello")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	got, err := c1.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}

	if err := c1.Send([]byte("world")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	got, err = c0.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if string(got) != "world" {
		t.Errorf("got %q, want %q", got, "world")
	}

	if c0.RemoteAddr().String() != "pipe:1" || c1.LocalAddr().String() != "pipe:1" {
		t.Errorf("unexpected addresses %s / %s", c0.RemoteAddr(), c1.LocalAddr())
	}
}

func TestPipeManualProcess(t *testing.T) {
	p := NewPipeWithConfig(PipeConfig{AutoProcess: false})
	defer p.Close()

	c0, c1 := p.Conns(ConnConfig{})

	for _, m := range []string{"a", "b"} {
		if err := c0.Send([]byte(m)); err != nil {
			t.Fatal(err)
		}
	}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c1.Receive(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected nothing before Process, got %v", err)
	}

	if n := p.Process(); n != 2 {
		t.Errorf("Process delivered %d packets, want 2", n)
	}
	if n := p.Pending(); n != 0 {
		t.Errorf("%d packets still queued after Process", n)
	}

	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	for _, want := range []string{"a", "b"} {
		got, err := c1.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if string(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestPipeDropAll(t *testing.T) {
	p := NewPipe()
	defer p.Close()
	p.SetCondition(NetworkCondition{DropRate: 1.0})

	c0, c1 := p.Conns(ConnConfig{})
	if err := c0.Send([]byte("lost")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := c1.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the packet to be dropped, got %v", err)
	}

	p.SetCondition(NetworkCondition{})
	if err := c0.Send([]byte("kept")); err != nil {
		t.Fatal(err)
	}
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	got, err := c1.Receive(ctx2)
	if err != nil || string(got) != "kept" {
		t.Fatalf("Receive = %q, %v", got, err)
	}
}

func TestPipeProcessDeliversBurst(t *testing.T) {
	p := NewPipeWithConfig(PipeConfig{AutoProcess: false})
	defer p.Close()

	c0, c1 := p.Conns(ConnConfig{})

	const burst = 8
	for i := 0; i < burst; i++ {
		if err := c0.Send([]byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
		if err := c1.Send([]byte{byte(0x80 | i)}); err != nil {
			t.Fatal(err)
		}
	}
	if n := p.Pending(); n != 2*burst {
		t.Fatalf("Pending = %d, want %d", n, 2*burst)
	}

	if n := p.Process(); n != 2*burst {
		t.Fatalf("Process delivered %d packets, want %d", n, 2*burst)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < burst; i++ {
		got, err := c1.Receive(ctx)
		if err != nil {
			t.Fatalf("c1 Receive %d: %v", i, err)
		}
		if got[0] != byte(i) {
			t.Errorf("c1 packet %d = %#x, want %#x", i, got[0], i)
		}
		got, err = c0.Receive(ctx)
		if err != nil {
			t.Fatalf("c0 Receive %d: %v", i, err)
		}
		if got[0] != byte(0x80|i) {
			t.Errorf("c0 packet %d = %#x, want %#x", i, got[0], 0x80|i)
		}
	}
}
