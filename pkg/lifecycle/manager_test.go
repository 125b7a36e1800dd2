package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdown_ReverseOrder(t *testing.T) {
	m := New(time.Second)

	var order []string
	for _, name := range []string{"db", "feed", "http"} {
		name := name
		m.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"http", "feed", "db"}, order)
}

func TestShutdown_JoinsErrors(t *testing.T) {
	m := New(time.Second)
	boom := errors.New("boom")
	called := false

	m.Register("first", func(context.Context) error {
		called = true
		return nil
	})
	m.Register("second", func(context.Context) error { return boom })
	m.Register("nil", nil)

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, called)
}
