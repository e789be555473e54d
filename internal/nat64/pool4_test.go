package nat64

import (
	"errors"
	"net/netip"
	"testing"
)

func TestPool4RegisterAllProtocols(t *testing.T) {
	t.Parallel()

	p := newPool4()
	addr := netip.MustParseAddr("192.0.2.1")

	if err := p.register(addr); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, proto := range []Proto{ProtoUDP, ProtoTCP, ProtoICMP} {
		if _, err := p.getAny(proto, 5000); err != nil {
			t.Errorf("getAny(%v) after register: %v", proto, err)
		}
	}
}

func TestPool4RegisterIdempotent(t *testing.T) {
	t.Parallel()

	p := newPool4()
	addr := netip.MustParseAddr("192.0.2.1")

	if err := p.register(addr); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := p.register(addr); err != nil {
		t.Fatalf("second register should be a no-op, got: %v", err)
	}
	if got := len(p.list()); got != 1 {
		t.Fatalf("list length = %d, want 1 (no duplicate node)", got)
	}
}

func TestPool4RemoveNotFound(t *testing.T) {
	t.Parallel()

	p := newPool4()
	err := p.remove(netip.MustParseAddr("192.0.2.1"))
	if !errors.Is(err, ErrPool4NotFound) {
		t.Fatalf("remove on empty pool: got %v, want ErrPool4NotFound", err)
	}
}

func TestPool4GetAnyRegistrationOrderFairness(t *testing.T) {
	t.Parallel()

	p := newPool4()
	first := netip.MustParseAddr("192.0.2.1")
	second := netip.MustParseAddr("192.0.2.2")

	if err := p.register(first); err != nil {
		t.Fatalf("register first: %v", err)
	}
	if err := p.register(second); err != nil {
		t.Fatalf("register second: %v", err)
	}

	ta, err := p.getAny(ProtoUDP, 4000)
	if err != nil {
		t.Fatalf("getAny: %v", err)
	}
	if ta.Addr != first {
		t.Errorf("getAny returned %s, want first-registered %s", ta.Addr, first)
	}
}

func TestPool4GetAnyEmptyPool(t *testing.T) {
	t.Parallel()

	p := newPool4()
	_, err := p.getAny(ProtoUDP, 4000)
	if !errors.Is(err, ErrPool4Empty) {
		t.Fatalf("getAny on empty pool: got %v, want ErrPool4Empty", err)
	}
}

func TestPool4SectionParityPreserved(t *testing.T) {
	t.Parallel()

	p := newPool4()
	addr := netip.MustParseAddr("192.0.2.1")
	if err := p.register(addr); err != nil {
		t.Fatalf("register: %v", err)
	}

	// An even low hint (port 1000) must draw an even port in [0,1022].
	ta, err := p.getAny(ProtoUDP, 1000)
	if err != nil {
		t.Fatalf("getAny: %v", err)
	}
	if ta.Port%2 != 0 || ta.Port >= 1024 {
		t.Errorf("port = %d, want an even port < 1024", ta.Port)
	}

	// An odd high hint (port 50001) must draw an odd port in [1025,65535].
	ta2, err := p.getAny(ProtoUDP, 50001)
	if err != nil {
		t.Fatalf("getAny: %v", err)
	}
	if ta2.Port%2 == 0 || ta2.Port < 1025 {
		t.Errorf("port = %d, want an odd port >= 1025", ta2.Port)
	}
}

func TestPool4PutBackReusedBeforeHighWaterMark(t *testing.T) {
	t.Parallel()

	p := newPool4()
	addr := netip.MustParseAddr("192.0.2.1")
	if err := p.register(addr); err != nil {
		t.Fatalf("register: %v", err)
	}

	ta, err := p.getAny(ProtoUDP, 1000)
	if err != nil {
		t.Fatalf("getAny: %v", err)
	}
	if err := p.putBack(ProtoUDP, ta); err != nil {
		t.Fatalf("putBack: %v", err)
	}

	ta2, err := p.getAny(ProtoUDP, 1000)
	if err != nil {
		t.Fatalf("getAny after putBack: %v", err)
	}
	if ta2.Port != ta.Port {
		t.Errorf("expected the returned port %d to be reused first, got %d", ta.Port, ta2.Port)
	}
}

func TestPool4ContainsAndListUDPOnly(t *testing.T) {
	t.Parallel()

	p := newPool4()
	addr := netip.MustParseAddr("192.0.2.1")
	if err := p.register(addr); err != nil {
		t.Fatalf("register: %v", err)
	}

	if !p.contains(addr) {
		t.Error("contains should report true after register")
	}
	list := p.list()
	if len(list) != 1 || list[0] != addr {
		t.Errorf("list = %v, want [%s]", list, addr)
	}
}

func TestPool4RemoveThenGetAnyFails(t *testing.T) {
	t.Parallel()

	p := newPool4()
	addr := netip.MustParseAddr("192.0.2.1")
	if err := p.register(addr); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := p.remove(addr); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if p.contains(addr) {
		t.Error("contains should report false after remove")
	}
	_, err := p.getAny(ProtoUDP, 4000)
	if !errors.Is(err, ErrPool4Empty) {
		t.Fatalf("getAny after remove: got %v, want ErrPool4Empty", err)
	}
}
