package modl

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/df-mc/dragonfly/server"
	"github.com/restartfu/gophig"
	"github.com/sandertv/gophertunnel/minecraft/text"

	"github.com/modl-gg/minecraft-sub001/modl/logincache"
	"github.com/modl-gg/minecraft-sub001/modl/util"
)

// Config holds the client configuration: panel connection details, cache
// tuning, the diagnostics endpoint and the embedded Dragonfly settings.
type Config struct {
	Modl struct {
		SentryDsn  string
		LogLevel   string // Can be "debug", "info", "warn", "error"
		LocalePath string
	}
	Panel struct {
		URL    string
		APIKey string

		// PollingRate is the sync interval in seconds, clamped to >= 1.
		PollingRate int
		// LoginCacheTTL is how long a completed login check is reused.
		LoginCacheTTL util.Duration
	}
	Service struct {
		GinAddress     string
		DiagnosticsKey string
	}
	server.UserConfig
}

// DefaultConfig returns a config with prefilled default values.
func DefaultConfig() Config {
	c := Config{}

	c.Modl.SentryDsn = ""
	c.Modl.LogLevel = "info"
	c.Modl.LocalePath = "resources/locales"

	c.Panel.URL = "http://127.0.0.1:4000/api/minecraft"
	c.Panel.APIKey = "secret-key"
	c.Panel.PollingRate = 2
	c.Panel.LoginCacheTTL = util.Duration(logincache.DefaultResultTTL)

	c.Service.GinAddress = ":8080"
	c.Service.DiagnosticsKey = "secret-key"

	userConfig := server.DefaultConfig()
	userConfig.Server.Name = text.Colourf("<aqua>modl</aqua>")
	userConfig.World.Folder = "resources/world"
	userConfig.Players.Folder = "resources/player_data"

	c.UserConfig = userConfig

	return c
}

// ParseLogLevel returns the appropriate slog.Level based on string
// configuration. Returns an error if the provided log level string is not
// recognized.
func ParseLogLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unrecognized log level: %q", level)
	}
}

// ReadConfig loads the client configuration from config.toml. If the file
// doesn't exist, it creates a new one with default values.
func ReadConfig() (Config, error) {
	g := gophig.NewGophig[Config]("./config.toml", gophig.TOMLMarshaler{}, os.ModePerm)
	_, err := g.LoadConf()
	if os.IsNotExist(err) {
		err = g.SaveConf(DefaultConfig())
		if err != nil {
			return Config{}, err
		}
	}
	c, err := g.LoadConf()
	return c, err
}
