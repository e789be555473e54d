package nat64

import (
	"errors"
	"net/netip"
	"testing"
)

func mustTransportAddr(t *testing.T, addr string, port uint16) TransportAddr {
	t.Helper()
	return TransportAddr{Addr: netip.MustParseAddr(addr), Port: port}
}

func TestBIBTableCreateAndLookup(t *testing.T) {
	t.Parallel()

	bt := newBIBTable()
	v6 := mustTransportAddr(t, "2001:db8::1", 1000)
	v4 := mustTransportAddr(t, "192.0.2.1", 2000)

	b, err := bt.create(ProtoUDP, v6, v4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if got := bt.lookupByV6(v6); got != b {
		t.Error("lookupByV6 did not return the created BIB")
	}
	if got := bt.lookupByV4(v4); got != b {
		t.Error("lookupByV4 did not return the created BIB")
	}
	if got := bt.count(); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
}

func TestBIBTableCreateDuplicateV6(t *testing.T) {
	t.Parallel()

	bt := newBIBTable()
	v6 := mustTransportAddr(t, "2001:db8::1", 1000)
	v4a := mustTransportAddr(t, "192.0.2.1", 2000)
	v4b := mustTransportAddr(t, "192.0.2.1", 2001)

	if _, err := bt.create(ProtoUDP, v6, v4a); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := bt.create(ProtoUDP, v6, v4b); !errors.Is(err, ErrBIBExists) {
		t.Fatalf("second create: got %v, want ErrBIBExists", err)
	}
}

func TestBIBTableDestroyRemovesBothIndices(t *testing.T) {
	t.Parallel()

	bt := newBIBTable()
	v6 := mustTransportAddr(t, "2001:db8::1", 1000)
	v4 := mustTransportAddr(t, "192.0.2.1", 2000)

	b, err := bt.create(ProtoUDP, v6, v4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	bt.destroy(b)

	if got := bt.lookupByV6(v6); got != nil {
		t.Error("lookupByV6 should miss after destroy")
	}
	if got := bt.lookupByV4(v4); got != nil {
		t.Error("lookupByV4 should miss after destroy")
	}
	if got := bt.count(); got != 0 {
		t.Errorf("count = %d, want 0", got)
	}
}

func TestBIBSessionLifecycle(t *testing.T) {
	t.Parallel()

	v6 := mustTransportAddr(t, "2001:db8::1", 1000)
	v4 := mustTransportAddr(t, "192.0.2.1", 2000)
	b := newBIB(ProtoUDP, v6, v4)

	remote := mustTransportAddr(t, "203.0.113.1", 80)
	s := newSession(b, TransportAddr{}, remote)

	b.addSession(s)
	if got := b.sessionCount(); got != 1 {
		t.Fatalf("sessionCount = %d, want 1", got)
	}
	if got := b.lookupSession(remote); got != s {
		t.Error("lookupSession did not return the added session")
	}

	empty := b.removeSession(s)
	if !empty {
		t.Error("removeSession should report empty after removing the only session")
	}
	if got := b.sessionCount(); got != 0 {
		t.Errorf("sessionCount after removal = %d, want 0", got)
	}
}

func TestBIBTableForEach(t *testing.T) {
	t.Parallel()

	bt := newBIBTable()
	v6a := mustTransportAddr(t, "2001:db8::1", 1000)
	v4a := mustTransportAddr(t, "192.0.2.1", 2000)
	v6b := mustTransportAddr(t, "2001:db8::2", 1001)
	v4b := mustTransportAddr(t, "192.0.2.2", 2001)

	if _, err := bt.create(ProtoTCP, v6a, v4a); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if _, err := bt.create(ProtoTCP, v6b, v4b); err != nil {
		t.Fatalf("create b: %v", err)
	}

	seen := map[TransportAddr]bool{}
	bt.forEach(func(b *BIB) {
		seen[b.V6Taddr] = true
	})

	if !seen[v6a] || !seen[v6b] {
		t.Errorf("forEach visited %v, want both %s and %s", seen, v6a, v6b)
	}
}
