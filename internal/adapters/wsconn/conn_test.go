package wsconn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConn_TrySend(t *testing.T) {
	t.Run("should queue until the buffer is full", func(t *testing.T) {
		c := New(nil, 1)

		require.NoError(t, c.TrySend([]byte("a")))
		require.ErrorIs(t, c.TrySend([]byte("b")), ErrBackpressure)
	})

	t.Run("should refuse frames once closed", func(t *testing.T) {
		c := New(nil, 1)
		c.Close()
		c.Close()

		require.ErrorIs(t, c.TrySend([]byte("a")), ErrClosed)
	})
}
