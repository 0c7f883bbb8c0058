package middleware

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/peer"
)

const maxTrackedPeers = 10000

// PeerLimiter is a token bucket per remote address. It satisfies the
// go-grpc-middleware ratelimit.Limiter interface.
type PeerLimiter struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
	every   rate.Limit
	burst   int
}

// NewPeerLimiter allows limit calls per window for each peer. A
// non-positive limit disables limiting.
func NewPeerLimiter(limit int, window time.Duration) *PeerLimiter {
	if limit <= 0 || window <= 0 {
		return &PeerLimiter{}
	}
	return &PeerLimiter{
		buckets: expirable.NewLRU[string, *rate.Limiter](maxTrackedPeers, nil, 2*window),
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
	}
}

// Limit returns an error once the calling peer has used up its bucket.
func (l *PeerLimiter) Limit(ctx context.Context) error {
	if l.buckets == nil {
		return nil
	}

	key := peerKey(ctx)

	l.mu.Lock()
	lim, ok := l.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.buckets.Add(key, lim)
	}
	l.mu.Unlock()

	if !lim.Allow() {
		return fmt.Errorf("too many requests from %s", key)
	}
	return nil
}

func peerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	addr := p.Addr.String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
