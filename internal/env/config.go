package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"

	"github.com/luma/mpdmux/client"
)

// LocalEnvFile is loaded before the environment is read, when it exists.
const LocalEnvFile = ".env.local"

type Config struct {
	// Network and Addr of the daemon, "unix" with a socket path works too
	Network     string        `env:"MPDMUX_NETWORK,default=tcp"`
	Addr        string        `env:"MPDMUX_ADDR,default=localhost:6600"`
	Password    string        `env:"MPDMUX_PASSWORD"`
	DialTimeout time.Duration `env:"MPDMUX_DIAL_TIMEOUT,default=5s"`

	HTTPHost         string   `env:"MPDMUX_HTTP_HOST,default=0.0.0.0"`
	HTTPPort         int      `env:"MPDMUX_HTTP_PORT,default=7362"`
	HTTPAllowOrigins []string `env:"MPDMUX_HTTP_ALLOW_ORIGINS"`
	DebugHTTP        bool     `env:"MPDMUX_DEBUG_HTTP"`

	WatchDelay       time.Duration `env:"MPDMUX_WATCH_DELAY,default=100ms"`
	SubscriberBuffer int           `env:"MPDMUX_SUBSCRIBER_BUFFER,default=16"`
	BinaryLimit      int           `env:"MPDMUX_BINARY_LIMIT"`

	LogLevel string `env:"MPDMUX_LOG_LEVEL,default=info"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(LocalEnvFile); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return LoadConfigFrom(ctx, envconfig.OsLookuper())
}

// LoadConfigFrom reads the config from l instead of the process environment.
func LoadConfigFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	config := Config{}

	if err := envconfig.ProcessWith(ctx, &config, l); err != nil {
		return nil, err
	}

	return &config, nil
}

// ClientOptions maps the config onto connection options.
func (c *Config) ClientOptions(log *zap.Logger) client.Options {
	return client.Options{
		Log:              log,
		WatchDelay:       c.WatchDelay,
		Password:         c.Password,
		BinaryLimit:      c.BinaryLimit,
		SubscriberBuffer: c.SubscriberBuffer,
	}
}
