package nats

import (
	"path/filepath"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titi-ai/titi/internal/model"
	"github.com/titi-ai/titi/pkg/logger"
)

func TestSubjects(t *testing.T) {
	id := "2b1f0c8e-1d1a-4c3e-9a57-0f4b5f1e2d3c"

	assert.Equal(t, "titi."+id+".turn.user", TurnSubject(id, model.RoleUser))
	assert.Equal(t, "titi."+id+".turn.assistant", TurnSubject(id, model.RoleAssistant))
	assert.Equal(t, "titi."+id+".event.search_failed", EventSubject(id, model.EventTypeSearchFailed))
}

func applyOptions(t *testing.T, opts []nats.Option) (nats.Options, error) {
	t.Helper()
	o := nats.GetDefaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return o, err
		}
	}
	return o, nil
}

func TestOptions(t *testing.T) {
	log := logger.NewNop()

	t.Run("plain", func(t *testing.T) {
		opts, err := options(Config{URL: "nats://localhost:4222"}, log)
		require.NoError(t, err)
		o, err := applyOptions(t, opts)
		require.NoError(t, err)
		assert.Equal(t, "titi", o.Name)
		assert.Equal(t, -1, o.MaxReconnect)
		assert.False(t, o.Secure)
		assert.Empty(t, o.Token)
	})

	t.Run("token", func(t *testing.T) {
		opts, err := options(Config{Token: "s3cret"}, log)
		require.NoError(t, err)
		o, err := applyOptions(t, opts)
		require.NoError(t, err)
		assert.Equal(t, "s3cret", o.Token)
	})

	t.Run("missing CA file", func(t *testing.T) {
		opts, err := options(Config{CAFile: filepath.Join(t.TempDir(), "ca.pem")}, log)
		require.NoError(t, err)
		_, err = applyOptions(t, opts)
		assert.Error(t, err)
	})

	t.Run("cert without key", func(t *testing.T) {
		_, err := options(Config{CertFile: "client.pem"}, log)
		assert.Error(t, err)
	})
}
