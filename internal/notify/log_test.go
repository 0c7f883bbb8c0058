package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/rbac-server/internal/logger"
)

func TestLog_SendPasswordReset(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	n := NewLog(logger.NewWithWriter(&buf, 0))

	require.NoError(t, n.SendPasswordReset(context.Background(), "alice@example.com", "0123456789abcdef"))

	out := buf.String()
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, "tokenPrefix=01234567")
	assert.NotContains(t, out, "0123456789abcdef")
}
