package env_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/luma/mpdmux/internal/env"
)

var _ = Describe("env", func() {
	Describe("LoadConfigFrom()", func() {
		It("fills in defaults", func() {
			config, err := env.LoadConfigFrom(context.Background(), envconfig.MapLookuper(nil))
			Expect(err).To(Succeed())

			Expect(config.Network).To(Equal("tcp"))
			Expect(config.Addr).To(Equal("localhost:6600"))
			Expect(config.HTTPPort).To(Equal(7362))
			Expect(config.WatchDelay).To(Equal(100 * time.Millisecond))
			Expect(config.SubscriberBuffer).To(Equal(16))
			Expect(config.LogLevel).To(Equal("info"))
		})

		It("reads MPDMUX_ variables", func() {
			config, err := env.LoadConfigFrom(context.Background(), envconfig.MapLookuper(map[string]string{
				"MPDMUX_NETWORK":      "unix",
				"MPDMUX_ADDR":         "/run/mpd/socket",
				"MPDMUX_PASSWORD":     "hunter2",
				"MPDMUX_WATCH_DELAY":  "-1s",
				"MPDMUX_BINARY_LIMIT": "65536",

				"MPDMUX_HTTP_ALLOW_ORIGINS": "http://localhost:3000,https://music.local",
			}))
			Expect(err).To(Succeed())

			Expect(config.HTTPAllowOrigins).To(Equal([]string{"http://localhost:3000", "https://music.local"}))

			Expect(config.Network).To(Equal("unix"))
			Expect(config.Addr).To(Equal("/run/mpd/socket"))

			opts := config.ClientOptions(zap.NewNop())
			Expect(opts.Password).To(Equal("hunter2"))
			Expect(opts.WatchDelay).To(Equal(-time.Second))
			Expect(opts.BinaryLimit).To(Equal(65536))
		})

		It("rejects malformed values", func() {
			_, err := env.LoadConfigFrom(context.Background(), envconfig.MapLookuper(map[string]string{
				"MPDMUX_HTTP_PORT": "http",
			}))
			Expect(err).NotTo(Succeed())
		})
	})

	Describe("MakeLogger()", func() {
		It("uses the given level", func() {
			log, err := env.MakeLogger("warn")
			Expect(err).To(Succeed())

			Expect(log.Core().Enabled(zapcore.InfoLevel)).To(BeFalse())
			Expect(log.Core().Enabled(zapcore.WarnLevel)).To(BeTrue())
		})

		It("rejects unknown levels", func() {
			_, err := env.MakeLogger("loud")
			Expect(err).NotTo(Succeed())
		})
	})
})
