package probe

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_NoDescriptor(t *testing.T) {
	p := New("", 5*time.Second)

	start := time.Now()
	err := p.Check(context.Background())

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "no-descriptor check must not touch the network")
}

func TestCheck_UnreachableHost(t *testing.T) {
	// Grab a port that is guaranteed to be closed.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	p := New("postgres://stevedore:secret@"+addr+"/app", 2*time.Second)

	err = p.Check(context.Background())
	require.Error(t, err)

	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.Contains(t, unreachable.Descriptor, "xxxxx")
	assert.NotContains(t, unreachable.Descriptor, "secret")
	assert.NotContains(t, err.Error(), "secret")
}

func TestCheck_TimeoutRespected(t *testing.T) {
	// A listener that accepts but never completes the handshake forces the
	// probe to rely on its own timeout.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			// Hold the connection open without responding.
			defer func() { _ = conn.Close() }()
		}
	}()

	p := New("postgres://stevedore@"+l.Addr().String()+"/app", 500*time.Millisecond)

	start := time.Now()
	err = p.Check(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 5*time.Second, "probe must fail once its own timeout elapses")
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "url with password",
			input: "postgres://app:hunter2@db:5432/main",
			want:  "postgres://app:xxxxx@db:5432/main",
		},
		{
			name:  "url without password",
			input: "postgres://app@db:5432/main",
			want:  "postgres://app@db:5432/main",
		},
		{
			name:  "dsn form",
			input: "host=db port=5432 user=app password=hunter2 dbname=main",
			want:  "host=db port=5432 user=app password=xxxxx dbname=main",
		},
		{
			name:  "dsn form uppercase key",
			input: "host=db PASSWORD=hunter2",
			want:  "host=db PASSWORD=xxxxx",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Redact(tt.input))
		})
	}
}

func TestUnreachableError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &UnreachableError{Descriptor: "postgres://app:xxxxx@db:5432/main", Err: cause}

	assert.Contains(t, err.Error(), "dependency unreachable")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}
