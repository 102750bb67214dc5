package bus

import (
	"context"
	"testing"
	"time"
)

func expectPayload(t *testing.T, sub *Subscription, want any) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		if got.Payload != want {
			t.Errorf("expected payload %v, got %v", want, got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message on %s", sub.Topic())
	}
}

func expectNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message on %s: %v", sub.Topic(), got.Payload)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("config", "hal"))
	conn.Publish(conn.NewMessage(T("config", "hal"), "hello", false))

	expectPayload(t, sub, "hello")
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("config", "hal"), "persist", true))

	sub := conn.Subscribe(T("config", "hal"))
	expectPayload(t, sub, "persist")
}

func TestRetainedClear(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("a"), "v1", true))
	conn.Publish(conn.NewMessage(T("a"), nil, true))

	sub := conn.Subscribe(T("a"))
	expectNoMessage(t, sub)
}

func TestWildcardSingleLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	s1 := c.Subscribe(T("a", "+", "c"))
	s2 := c.Subscribe(T("a", "+", "+"))
	s3 := c.Subscribe(T("a", "b", "+"))
	sNo := c.Subscribe(T("a", "+", "d"))

	c.Publish(c.NewMessage(T("a", "b", "c"), "m1", false))

	expectPayload(t, s1, "m1")
	expectPayload(t, s2, "m1")
	expectPayload(t, s3, "m1")
	expectNoMessage(t, sNo)

	c.Publish(c.NewMessage(T("a", "x", "y"), "m2", false))

	expectPayload(t, s2, "m2")
	expectNoMessage(t, s1)
	expectNoMessage(t, s3)
}

func TestWildcardRest(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sAll := c.Subscribe(T("hal", "#"))

	c.Publish(c.NewMessage(T("hal", "cap", "io", "led", "led0", "value"), "v", false))
	expectPayload(t, sAll, "v")

	c.Publish(c.NewMessage(T("config", "hal"), "cfg", false))
	expectNoMessage(t, sAll)
}

func TestRetainedReplayThroughWildcard(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	c.Publish(c.NewMessage(T("hal", "cap", "io", "led", "led0", "value"), "on", true))

	sub := c.Subscribe(T("hal", "cap", "io", "led", "+", "value"))
	expectPayload(t, sub, "on")
}

func TestRequestReply(t *testing.T) {
	b := NewBus(8)
	server := b.NewConnection("server")
	client := b.NewConnection("client")

	ctrl := server.Subscribe(T("svc", "control"))
	go func() {
		m := <-ctrl.Channel()
		server.Reply(m, "done", false)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := client.RequestWait(ctx, client.NewRequest(T("svc", "control"), "go"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if reply.Payload != "done" {
		t.Errorf("expected reply 'done', got %v", reply.Payload)
	}
}

func TestRequestWaitTimesOut(t *testing.T) {
	b := NewBus(8)
	client := b.NewConnection("client")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := client.RequestWait(ctx, client.NewRequest(T("nobody", "home"), nil)); err != ErrNoReply {
		t.Fatalf("expected ErrNoReply, got %v", err)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("x"))
	sub.Unsubscribe()

	// Channel is closed; publish must not panic and nothing is delivered.
	c.Publish(c.NewMessage(T("x"), "gone", false))
	if m, ok := <-sub.Channel(); ok {
		t.Fatalf("expected closed channel, got %v", m.Payload)
	}
}

func TestDropOldestWhenFull(t *testing.T) {
	b := NewBus(1)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("q"))
	c.Publish(c.NewMessage(T("q"), "first", false))
	c.Publish(c.NewMessage(T("q"), "second", false))

	expectPayload(t, sub, "second")
}
