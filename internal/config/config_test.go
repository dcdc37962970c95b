package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("overrides merge over defaults", func(t *testing.T) {
		const doc = `
[network]
bind_address = "127.0.0.1:7777"

[battle]
tick_rate = "50ms"
domination_score_gap = 50

[logging]
level = "debug"
`
		path := filepath.Join(t.TempDir(), "server.toml")
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)

		require.Equal(t, "127.0.0.1:7777", cfg.Network.BindAddress)
		require.Equal(t, 50*time.Millisecond, cfg.Battle.TickRate)
		require.Equal(t, 50, cfg.Battle.DominationScoreGap)
		require.Equal(t, "debug", cfg.Logging.Level)

		// Untouched sections keep their defaults.
		require.Equal(t, 128, cfg.Network.ExecuteQueueSize)
		require.Equal(t, 2, cfg.Battle.MinPlayersToStart)
		require.Equal(t, 5*time.Second, cfg.Database.PingTimeout)
		require.NotZero(t, cfg.Server.StartTime)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		require.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("battle = ["), 0o644))
		_, err := Load(path)
		require.Error(t, err)
	})
}
