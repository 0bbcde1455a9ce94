package options

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"github.com/veritas-l2/hextrie/pkg/config"
	"go.uber.org/zap"
)

func writeTestConfig(t *testing.T, dir, name, data string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestGetConfigFromContext(t *testing.T) {
	const cfgYML = `
ApplicationConfiguration:
  LogLevel: warn
`
	t.Run("config-path", func(t *testing.T) {
		d := t.TempDir()
		writeTestConfig(t, d, config.DefaultConfigFileName, cfgYML)
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("config-path", d, "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		cfg, err := GetConfigFromContext(ctx)
		require.NoError(t, err)
		require.Equal(t, "warn", cfg.ApplicationConfiguration.LogLevel)
	})

	t.Run("config-file overrides config-path", func(t *testing.T) {
		d := t.TempDir()
		writeTestConfig(t, d, config.DefaultConfigFileName, cfgYML)
		file := writeTestConfig(t, d, "custom.yml", `
ApplicationConfiguration:
  LogLevel: error
`)
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("config-path", d, "")
		set.String("config-file", file, "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		cfg, err := GetConfigFromContext(ctx)
		require.NoError(t, err)
		require.Equal(t, "error", cfg.ApplicationConfiguration.LogLevel)
	})

	t.Run("missing config", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("config-path", t.TempDir(), "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		_, err := GetConfigFromContext(ctx)
		require.Error(t, err)
	})
}

func TestHandleLoggingParams(t *testing.T) {
	d := t.TempDir()
	testLog := filepath.Join(d, "file.log")

	t.Run("logdir is a file", func(t *testing.T) {
		logfile := filepath.Join(d, "logdir")
		require.NoError(t, os.WriteFile(logfile, []byte{1, 2, 3}, os.ModePerm))
		cfg := config.ApplicationConfiguration{
			LogPath: filepath.Join(logfile, "file.log"),
		}
		_, _, err := HandleLoggingParams(false, cfg)
		require.Error(t, err)
	})

	t.Run("broken level", func(t *testing.T) {
		cfg := config.ApplicationConfiguration{
			LogPath:  testLog,
			LogLevel: "qwerty",
		}
		_, _, err := HandleLoggingParams(false, cfg)
		require.Error(t, err)
	})

	t.Run("default", func(t *testing.T) {
		cfg := config.ApplicationConfiguration{
			LogPath: testLog,
		}
		logger, lvl, err := HandleLoggingParams(false, cfg)
		require.NoError(t, err)
		require.NotNil(t, lvl)
		require.True(t, logger.Core().Enabled(zap.InfoLevel))
		require.False(t, logger.Core().Enabled(zap.DebugLevel))
	})

	t.Run("warn", func(t *testing.T) {
		cfg := config.ApplicationConfiguration{
			LogPath:  testLog,
			LogLevel: "warn",
		}
		logger, _, err := HandleLoggingParams(false, cfg)
		require.NoError(t, err)
		require.True(t, logger.Core().Enabled(zap.WarnLevel))
		require.False(t, logger.Core().Enabled(zap.InfoLevel))
	})

	t.Run("debug", func(t *testing.T) {
		cfg := config.ApplicationConfiguration{
			LogPath: testLog,
		}
		logger, _, err := HandleLoggingParams(true, cfg)
		require.NoError(t, err)
		require.True(t, logger.Core().Enabled(zap.InfoLevel))
		require.True(t, logger.Core().Enabled(zap.DebugLevel))
	})

	t.Run("level change", func(t *testing.T) {
		cfg := config.ApplicationConfiguration{
			LogPath: testLog,
		}
		logger, lvl, err := HandleLoggingParams(false, cfg)
		require.NoError(t, err)
		require.False(t, logger.Core().Enabled(zap.DebugLevel))
		lvl.SetLevel(zap.DebugLevel)
		require.True(t, logger.Core().Enabled(zap.DebugLevel))
	})
}
