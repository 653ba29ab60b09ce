package storage_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/mpdmux/client"
	"github.com/luma/mpdmux/internal/mpdtest"
	"github.com/luma/mpdmux/storage"
)

var _ = Describe("storage / Mirror", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		store  *storage.InmemoryStore
		daemon *mpdtest.Daemon
		conn   *client.Conn
		volume atomic.Int32
	)

	get := func(key string) func() string {
		return func() string {
			value, _ := store.Get(ctx, key)
			return string(value)
		}
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		store = storage.NewInmemoryStore()
		volume.Store(50)

		var pipe net.Conn
		daemon, pipe = mpdtest.New()
		daemon.Handle("status", func([]string) mpdtest.Reply {
			return mpdtest.Reply{Body: fmt.Sprintf("volume: %d\nstate: play\n", volume.Load())}
		})
		daemon.Handle("currentsong", func([]string) mpdtest.Reply {
			return mpdtest.Reply{Body: "file: one.flac\nTitle: One More Time\nGenre: House\nGenre: French\n"}
		})
		daemon.Handle("outputs", func([]string) mpdtest.Reply {
			return mpdtest.Reply{Body: "outputid: 0\noutputname: ALSA\noutputenabled: 1\n" +
				"outputid: 1\noutputname: HTTP\noutputenabled: 0\n"}
		})

		var err error
		conn, err = client.Connect(ctx, pipe, client.Options{
			Log:        zap.NewNop(),
			WatchDelay: 5 * time.Millisecond,
		})
		Expect(err).To(Succeed())
	})

	AfterEach(func() {
		conn.Close()
		store.Close()
		cancel()
		daemon.Hangup()
	})

	It("loads every key", func() {
		mirror := storage.NewMirror(conn, store, zap.NewNop())
		Expect(mirror.Refresh(ctx)).To(Succeed())

		Expect(get("status.volume")()).To(Equal(`"50"`))
		Expect(get("currentsong.Title")()).To(Equal(`"One More Time"`))
		Expect(get("currentsong.Genre")()).To(MatchJSON(`["House","French"]`))
		Expect(get("outputs.#")()).To(Equal(`2`))
		Expect(get("outputs.1.outputname")()).To(Equal(`"HTTP"`))
	})

	It("follows change events until the connection closes", func() {
		mirror := storage.NewMirror(conn, store, zap.NewNop())

		done := make(chan error, 1)
		go func() {
			done <- mirror.Run(ctx)
		}()

		Eventually(get("status.volume")).Should(Equal(`"50"`))

		volume.Store(80)
		daemon.Notify(string(client.SubsystemMixer))

		Eventually(get("status.volume")).Should(Equal(`"80"`))

		conn.Close()

		var err error
		Eventually(done).Should(Receive(&err))
		Expect(errors.Is(err, client.ErrConnectionClosed)).To(BeTrue())
	})

	It("stops with its context", func() {
		mirror := storage.NewMirror(conn, store, zap.NewNop())

		runCtx, stop := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- mirror.Run(runCtx)
		}()

		Eventually(get("status.state")).Should(Equal(`"play"`))
		stop()

		var err error
		Eventually(done).Should(Receive(&err))
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})
