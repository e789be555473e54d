package nat64

import (
	"container/list"
	"log/slog"
	"sync"
	"time"
)

// ExpiryKind selects which of the five expiry queues a session belongs to.
// Each queue has its own timeout and its own lock (spec §5 locking order:
// pool4 < bib-table < expiry-queue).
type ExpiryKind uint8

const (
	ExpiryUDPDefault ExpiryKind = iota
	ExpiryTCPTrans
	ExpiryTCPEst
	ExpiryTCPIncomingSyn
	ExpiryICMPDefault
	numExpiryQueues
)

func (k ExpiryKind) String() string {
	switch k {
	case ExpiryUDPDefault:
		return "udp_default"
	case ExpiryTCPTrans:
		return "tcp_trans"
	case ExpiryTCPEst:
		return "tcp_est"
	case ExpiryTCPIncomingSyn:
		return "tcp_incoming_syn"
	case ExpiryICMPDefault:
		return "icmp_default"
	default:
		return "unknown"
	}
}

// Default timeouts, matching the reference constants (UDP_DEFAULT_ = 5
// minutes, ICMP_DEFAULT_ = 1 minute) and RFC 6146's recommended TCP
// timers.
const (
	DefaultUDPTimeout      = 5 * time.Minute
	DefaultICMPTimeout     = 1 * time.Minute
	DefaultTCPTransTimeout = 4 * time.Minute
	DefaultTCPEstTimeout   = 2 * time.Hour
	DefaultTCPIncomingSyn  = 6 * time.Second
)

// expiryQueue is a FIFO of sessions ordered by expiry deadline: because
// every renewal re-appends to the tail with a deadline computed from
// "now + this queue's fixed timeout", the queue is monotonically ordered
// and the reaper can stop walking at the first session that hasn't
// expired yet.
type expiryQueue struct {
	mu      sync.Mutex
	timeout time.Duration
	entries list.List // of *Session
}

func newExpiryQueue(timeout time.Duration) *expiryQueue {
	q := &expiryQueue{timeout: timeout}
	q.entries.Init()
	return q
}

// push appends a session to the tail with a fresh deadline and records
// the resulting list element and queue kind on the session so renew/
// remove can find it again without a search.
func (q *expiryQueue) push(s *Session, kind ExpiryKind, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	s.expiresAt = now.Add(q.timeout)
	s.queueKind = kind
	s.element = q.entries.PushBack(s)
}

// renew detaches and re-appends a session with a fresh deadline — the
// same remove-then-tail-append pattern as the reference session_renew,
// which keeps the queue ordered without a sort.
func (q *expiryQueue) renew(s *Session, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if s.element != nil {
		q.entries.Remove(s.element)
	}
	s.expiresAt = now.Add(q.timeout)
	s.element = q.entries.PushBack(s)
}

// remove detaches a session from this queue ahead of its natural expiry
// (e.g. an explicit close, or a BIB-level teardown).
func (q *expiryQueue) remove(s *Session) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if s.element != nil {
		q.entries.Remove(s.element)
		s.element = nil
	}
}

// reapExpired walks the queue from the head, detaching every session whose
// deadline has passed (stopping at the first one that hasn't — the queue's
// monotonic ordering means everything after that point hasn't expired
// either), then calls onExpire for each detached session after releasing
// the queue lock. Cascading work (BIB teardown, pool4 putBack) acquires
// locks in the opposite order from the queue lock this function would
// otherwise be holding, so the detach-then-unlock-then-callback split keeps
// lock order consistent with the rest of the package (spec §5).
func (q *expiryQueue) reapExpired(now time.Time, onExpire func(*Session) (requeue bool)) int {
	q.mu.Lock()
	var expired []*Session
	for e := q.entries.Front(); e != nil; {
		s := e.Value.(*Session)
		if now.Before(s.expiresAt) {
			break
		}
		next := e.Next()
		q.entries.Remove(e)
		s.element = nil
		expired = append(expired, s)
		e = next
	}
	q.mu.Unlock()

	for _, s := range expired {
		// onExpire is responsible for re-pushing the session onto its new
		// queue (it may differ from this one); this queue only detaches it.
		onExpire(s)
	}
	return len(expired)
}

// expiryQueues owns all five queues. The periodic reaper loop that sweeps
// them is Core.RunReaper.
type expiryQueues struct {
	queues  [numExpiryQueues]*expiryQueue
	logger  *slog.Logger
	metrics MetricsReporter
	onReap  func(proto Proto, kind ExpiryKind, s *Session)
}

func newExpiryQueues(cfg FilteringConfig, logger *slog.Logger, metrics MetricsReporter) *expiryQueues {
	eq := &expiryQueues{logger: logger, metrics: metrics}
	eq.queues[ExpiryUDPDefault] = newExpiryQueue(cfg.UDPTimeout)
	eq.queues[ExpiryTCPTrans] = newExpiryQueue(cfg.TCPTransTimeout)
	eq.queues[ExpiryTCPEst] = newExpiryQueue(cfg.TCPEstTimeout)
	eq.queues[ExpiryTCPIncomingSyn] = newExpiryQueue(cfg.TCPIncomingSynTimeout)
	eq.queues[ExpiryICMPDefault] = newExpiryQueue(cfg.ICMPTimeout)
	return eq
}

func (eq *expiryQueues) queue(kind ExpiryKind) *expiryQueue {
	return eq.queues[kind]
}

// reconfigure updates every queue's timeout in place. Existing entries
// keep their current deadlines; only sessions renewed after this call
// observe the new timeout, matching the reference behavior where
// expiry_base[type].timeout is read fresh on every renewal.
func (eq *expiryQueues) reconfigure(cfg FilteringConfig) {
	eq.queues[ExpiryUDPDefault].mu.Lock()
	eq.queues[ExpiryUDPDefault].timeout = cfg.UDPTimeout
	eq.queues[ExpiryUDPDefault].mu.Unlock()

	eq.queues[ExpiryTCPTrans].mu.Lock()
	eq.queues[ExpiryTCPTrans].timeout = cfg.TCPTransTimeout
	eq.queues[ExpiryTCPTrans].mu.Unlock()

	eq.queues[ExpiryTCPEst].mu.Lock()
	eq.queues[ExpiryTCPEst].timeout = cfg.TCPEstTimeout
	eq.queues[ExpiryTCPEst].mu.Unlock()

	eq.queues[ExpiryTCPIncomingSyn].mu.Lock()
	eq.queues[ExpiryTCPIncomingSyn].timeout = cfg.TCPIncomingSynTimeout
	eq.queues[ExpiryTCPIncomingSyn].mu.Unlock()

	eq.queues[ExpiryICMPDefault].mu.Lock()
	eq.queues[ExpiryICMPDefault].timeout = cfg.ICMPTimeout
	eq.queues[ExpiryICMPDefault].mu.Unlock()
}
