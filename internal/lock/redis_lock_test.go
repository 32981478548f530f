package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisLockerIsExclusive(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := Connect(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()
	a := NewRedisLocker(client)
	b := NewRedisLocker(client)

	release, ok, err := a.TryAcquire(ctx, "sweep", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, err := b.TryAcquire(ctx, "sweep", time.Minute); err != nil || ok {
		t.Fatalf("second acquire must fail while held: ok=%v err=%v", ok, err)
	}
	release()
	if _, ok, err := b.TryAcquire(ctx, "sweep", time.Minute); err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestRedisLockerExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := Connect(ctx, "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()
	l := NewRedisLocker(client)
	if _, ok, _ := l.TryAcquire(ctx, "sweep", time.Second); !ok {
		t.Fatal("first acquire failed")
	}
	mr.FastForward(2 * time.Second)
	if _, ok, _ := l.TryAcquire(ctx, "sweep", time.Second); !ok {
		t.Fatal("lease should have expired")
	}
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	release, ok, _ := l.TryAcquire(context.Background(), "sweep", 0)
	if !ok {
		t.Fatal("first acquire failed")
	}
	if _, ok, _ := l.TryAcquire(context.Background(), "sweep", 0); ok {
		t.Fatal("second acquire must fail while held")
	}
	release()
	if _, ok, _ := l.TryAcquire(context.Background(), "sweep", 0); !ok {
		t.Fatal("acquire after release failed")
	}
}
