package nat64

import (
	"testing"
	"time"
)

func newTestSession(t *testing.T, proto Proto) *Session {
	t.Helper()
	v6 := mustTransportAddr(t, "2001:db8::1", 1000)
	v4 := mustTransportAddr(t, "192.0.2.1", 2000)
	b := newBIB(proto, v6, v4)
	return newSession(b, TransportAddr{}, mustTransportAddr(t, "203.0.113.1", 80))
}

func TestExpiryQueuePushThenReapBeforeDeadline(t *testing.T) {
	t.Parallel()

	q := newExpiryQueue(time.Minute)
	s := newTestSession(t, ProtoUDP)

	base := time.Now()
	q.push(s, ExpiryUDPDefault, base)

	n := q.reapExpired(base.Add(30*time.Second), func(*Session) bool { return false })
	if n != 0 {
		t.Errorf("reapExpired before deadline reaped %d, want 0", n)
	}
}

func TestExpiryQueueReapAfterDeadline(t *testing.T) {
	t.Parallel()

	q := newExpiryQueue(time.Minute)
	s := newTestSession(t, ProtoUDP)

	base := time.Now()
	q.push(s, ExpiryUDPDefault, base)

	var reaped []*Session
	n := q.reapExpired(base.Add(2*time.Minute), func(sess *Session) bool {
		reaped = append(reaped, sess)
		return false
	})

	if n != 1 || len(reaped) != 1 || reaped[0] != s {
		t.Fatalf("reapExpired after deadline: n=%d reaped=%v, want exactly s", n, reaped)
	}
}

func TestExpiryQueueRenewMovesToTail(t *testing.T) {
	t.Parallel()

	q := newExpiryQueue(time.Minute)
	s1 := newTestSession(t, ProtoUDP)
	s2 := newTestSession(t, ProtoUDP)

	base := time.Now()
	q.push(s1, ExpiryUDPDefault, base)
	q.push(s2, ExpiryUDPDefault, base.Add(time.Second))

	// Renewing s1 after s2 was pushed should push its deadline past s2's,
	// so a sweep at s2's original deadline reaps only s2.
	q.renew(s1, base.Add(2*time.Second))

	var reaped []*Session
	q.reapExpired(base.Add(time.Minute+time.Second+500*time.Millisecond), func(sess *Session) bool {
		reaped = append(reaped, sess)
		return false
	})

	if len(reaped) != 1 || reaped[0] != s2 {
		t.Fatalf("reapExpired = %v, want only s2 (s1 was renewed later)", reaped)
	}
}

func TestExpiryQueueRemoveDetaches(t *testing.T) {
	t.Parallel()

	q := newExpiryQueue(time.Minute)
	s := newTestSession(t, ProtoUDP)

	base := time.Now()
	q.push(s, ExpiryUDPDefault, base)
	q.remove(s)

	n := q.reapExpired(base.Add(time.Hour), func(*Session) bool { return false })
	if n != 0 {
		t.Errorf("reapExpired after remove reaped %d, want 0", n)
	}
}

func TestExpiryQueuesReconfigureAppliesToFutureRenewals(t *testing.T) {
	t.Parallel()

	cfg := DefaultFilteringConfig()
	eq := newExpiryQueues(cfg, nil, noopMetrics{})

	s := newTestSession(t, ProtoUDP)
	base := time.Now()
	eq.queue(ExpiryUDPDefault).push(s, ExpiryUDPDefault, base)

	newCfg := cfg
	newCfg.UDPTimeout = 10 * time.Second
	eq.reconfigure(newCfg)

	eq.queue(ExpiryUDPDefault).renew(s, base)
	want := base.Add(10 * time.Second)
	if !s.ExpiresAt().Equal(want) {
		t.Errorf("ExpiresAt after reconfigure+renew = %v, want %v", s.ExpiresAt(), want)
	}
}
