package middleware

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/peer"
)

func peerCtx(addr string) context.Context {
	tcp, _ := net.ResolveTCPAddr("tcp", addr)
	return peer.NewContext(context.Background(), &peer.Peer{Addr: tcp})
}

func TestPeerLimiter_Limit(t *testing.T) {
	t.Parallel()

	l := NewPeerLimiter(2, time.Hour)
	a := peerCtx("10.0.0.1:5000")
	aOtherPort := peerCtx("10.0.0.1:5001")
	b := peerCtx("10.0.0.2:5000")

	assert.NoError(t, l.Limit(a))
	assert.NoError(t, l.Limit(aOtherPort))
	assert.Error(t, l.Limit(a), "same host shares a bucket")
	assert.NoError(t, l.Limit(b))
}

func TestPeerLimiter_Disabled(t *testing.T) {
	t.Parallel()

	l := NewPeerLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		assert.NoError(t, l.Limit(context.Background()))
	}
}

func TestPeerKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unknown", peerKey(context.Background()))
	assert.Equal(t, "10.1.2.3", peerKey(peerCtx("10.1.2.3:80")))
}
