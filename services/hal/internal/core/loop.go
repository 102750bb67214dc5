package core

import (
	"context"
	"time"

	"supermini-go/bus"
	"supermini-go/errcode"
	"supermini-go/types"
	"supermini-go/x/timex"
)

type capEntry struct {
	dev      Device
	degraded bool
}

// HAL owns every configured device and serializes all device access in
// its run loop. Devices never touch the bus directly; they Emit events
// and the loop publishes.
type HAL struct {
	conn   *bus.Connection
	res    Resources
	devs   map[string]Device
	caps   map[CapAddr]*capEntry
	evCh   chan Event
	poller *Poller
}

func New(conn *bus.Connection, res Resources) *HAL {
	h := &HAL{
		conn:   conn,
		res:    res,
		devs:   make(map[string]Device),
		caps:   make(map[CapAddr]*capEntry),
		evCh:   make(chan Event, 16),
		poller: NewPoller(8),
	}
	h.res.Pub = h
	return h
}

// Emit implements EventEmitter. Safe from any goroutine; never blocks.
func (h *HAL) Emit(ev Event) bool {
	select {
	case h.evCh <- ev:
		return true
	default:
		return false
	}
}

// Run blocks until ctx ends. Config arrives retained on config/hal, so a
// HAL started after the config service still receives it.
func (h *HAL) Run(ctx context.Context) {
	cfgSub := h.conn.Subscribe(topicConfigHAL())
	ctrlSub := h.conn.Subscribe(ctrlWildcard())
	defer cfgSub.Unsubscribe()
	defer ctrlSub.Unsubscribe()

	go h.poller.Run(ctx)

	h.pubHALState("idle", "waiting_config")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case m := <-cfgSub.Channel():
			h.applyConfig(ctx, m)
		case m := <-ctrlSub.Channel():
			h.handleControl(m)
		case ev := <-h.evCh:
			h.handleEvent(ev)
		case req := <-h.poller.Out():
			h.handlePoll(req)
		}
	}
}

func (h *HAL) pubHALState(level, status string) {
	h.conn.Publish(h.conn.NewMessage(topicHALState(), types.HALState{
		Level:  level,
		Status: status,
		TSms:   timex.NowMs(),
	}, true))
}

// ---- config ----

func (h *HAL) applyConfig(ctx context.Context, m *bus.Message) {
	cfg, err := DecodeParams[types.HALConfig](m.Payload)
	if err != nil {
		println("hal: bad config:", err.Error())
		h.replyErr(m, errcode.InvalidParams)
		return
	}

	for _, d := range cfg.Devices {
		if _, exists := h.devs[d.ID]; exists {
			continue
		}
		h.buildDevice(ctx, d)
	}

	for _, ps := range cfg.Pollers {
		addr := CapAddr{Domain: ps.Domain, Kind: string(ps.Kind), Name: ps.Name}
		if addr.Domain == "" {
			addr.Domain = defaultDomain(ps.Kind)
		}
		if _, ok := h.caps[addr]; !ok {
			println("hal: poller for unknown capability:", addr.Domain, addr.Kind, addr.Name)
			continue
		}
		verb := ps.Verb
		if verb == "" {
			verb = "read"
		}
		h.poller.Upsert(addr, verb,
			time.Duration(ps.IntervalMs)*time.Millisecond,
			time.Duration(ps.JitterMs)*time.Millisecond)
	}

	h.pubHALState("ready", "ok")
	h.replyOK(m)
}

func (h *HAL) buildDevice(ctx context.Context, d types.HALDevice) {
	builder, ok := lookupBuilder(d.Type)
	if !ok {
		println("hal: no builder for device type:", d.Type)
		return
	}
	dev, err := builder.Build(ctx, BuilderInput{ID: d.ID, Type: d.Type, Params: d.Params, Res: h.res})
	if err != nil {
		println("hal: build failed:", d.ID, err.Error())
		return
	}
	if err := dev.Init(ctx); err != nil {
		println("hal: init failed:", d.ID, err.Error())
		h.announceDown(dev, errcode.Of(err))
		dev.Close()
		return
	}

	h.devs[d.ID] = dev
	for _, spec := range dev.Capabilities() {
		addr := h.capAddrFor(dev, spec)
		h.caps[addr] = &capEntry{dev: dev}
		h.conn.Publish(h.conn.NewMessage(capInfo(addr.Domain, addr.Kind, addr.Name), spec.Info, true))
		h.pubStatus(addr, types.LinkUp, "")
	}
}

func (h *HAL) capAddrFor(dev Device, spec CapabilitySpec) CapAddr {
	addr := CapAddr{Domain: spec.Domain, Kind: string(spec.Kind), Name: spec.Name}
	if addr.Domain == "" {
		addr.Domain = defaultDomain(spec.Kind)
	}
	if addr.Name == "" {
		addr.Name = dev.ID()
	}
	return addr
}

// announceDown publishes info+status for a device that failed to init, so
// observers can see the capability exists but is unusable.
func (h *HAL) announceDown(dev Device, code errcode.Code) {
	for _, spec := range dev.Capabilities() {
		addr := h.capAddrFor(dev, spec)
		h.conn.Publish(h.conn.NewMessage(capInfo(addr.Domain, addr.Kind, addr.Name), spec.Info, true))
		h.pubStatus(addr, types.LinkDown, string(code))
	}
}

func defaultDomain(kind types.Kind) string {
	switch kind {
	case types.KindTemperature, types.KindHumidity, types.KindPressure:
		return "env"
	default:
		return "io"
	}
}

// ---- control ----

func (h *HAL) handleControl(m *bus.Message) {
	// hal/cap/<domain>/<kind>/<name>/control/<verb>
	if m.Topic.Len() != 7 {
		h.replyErr(m, errcode.InvalidTopic)
		return
	}
	addr := CapAddr{Domain: m.Topic.At(2), Kind: m.Topic.At(3), Name: m.Topic.At(4)}
	verb := m.Topic.At(6)

	entry, ok := h.caps[addr]
	if !ok {
		h.replyErr(m, errcode.UnknownCapability)
		return
	}

	res, err := entry.dev.Control(addr, verb, m.Payload)
	if err != nil {
		h.replyFromError(m, err)
		return
	}
	if !res.OK {
		h.replyErr(m, res.Error)
		return
	}
	h.replyOK(m)
}

func (h *HAL) handlePoll(req PollReq) {
	entry, ok := h.caps[req.Addr]
	if !ok {
		return
	}
	if _, err := entry.dev.Control(req.Addr, req.Verb, nil); err != nil {
		h.handleEvent(Event{Addr: req.Addr, Err: string(errcode.Of(err)), TSms: timex.NowMs()})
	}
}

// ---- telemetry ----

func (h *HAL) handleEvent(ev Event) {
	entry := h.caps[ev.Addr]
	if ev.TSms == 0 {
		ev.TSms = timex.NowMs()
	}

	if ev.Err != "" {
		if entry != nil {
			entry.degraded = true
		}
		h.pubStatus(ev.Addr, types.LinkDegraded, ev.Err)
		return
	}

	if entry != nil && entry.degraded {
		entry.degraded = false
		h.pubStatus(ev.Addr, types.LinkUp, "")
	}

	if ev.IsEvent {
		t := capEvent(ev.Addr.Domain, ev.Addr.Kind, ev.Addr.Name)
		if ev.EventTag != "" {
			t = capEventTagged(ev.Addr.Domain, ev.Addr.Kind, ev.Addr.Name, ev.EventTag)
		}
		h.conn.Publish(h.conn.NewMessage(t, ev.Payload, false))
		return
	}

	h.conn.Publish(h.conn.NewMessage(capValue(ev.Addr.Domain, ev.Addr.Kind, ev.Addr.Name), ev.Payload, true))
}

func (h *HAL) pubStatus(addr CapAddr, link types.Link, errStr string) {
	h.conn.Publish(h.conn.NewMessage(capStatus(addr.Domain, addr.Kind, addr.Name), types.CapabilityStatus{
		Link:  link,
		TSms:  timex.NowMs(),
		Error: errStr,
	}, true))
}

// ---- shutdown ----

func (h *HAL) shutdown() {
	for addr := range h.caps {
		h.poller.Remove(addr)
		h.pubStatus(addr, types.LinkDown, "")
	}
	for id, dev := range h.devs {
		if err := dev.Close(); err != nil {
			println("hal: close failed:", id, err.Error())
		}
	}
	h.devs = make(map[string]Device)
	h.caps = make(map[CapAddr]*capEntry)
	h.pubHALState("stopped", "shutdown")
}
