package cmd

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/mpdmux/protocol"
)

var _ = Describe("cmd", func() {
	Describe("printFrames()", func() {
		It("prints fields in order with a blank line between frames", func() {
			frames := []protocol.Frame{
				{Fields: []protocol.Field{{Key: "volume", Value: "50"}, {Key: "state", Value: "play"}}},
				{Fields: []protocol.Field{{Key: "Genre", Value: "House"}, {Key: "Genre", Value: "French"}}},
			}

			var out bytes.Buffer
			Expect(printFrames(&out, frames)).To(Succeed())
			Expect(out.String()).To(Equal("volume: 50\nstate: play\n\nGenre: House\nGenre: French\n"))
		})

		It("leaves binary payloads out", func() {
			frames := []protocol.Frame{{
				Fields: []protocol.Field{{Key: "size", Value: "3"}, {Key: "binary", Value: "3"}},
				Binary: []byte{1, 2, 3},
			}}

			var out bytes.Buffer
			Expect(printFrames(&out, frames)).To(Succeed())
			Expect(out.String()).To(Equal("size: 3\nbinary: 3\n"))
		})
	})

	Describe("RootCmd", func() {
		It("prints the version", func() {
			var out bytes.Buffer
			RootCmd.SetOut(&out)
			RootCmd.SetArgs([]string{"version"})

			Expect(RootCmd.Execute()).To(Succeed())
			Expect(out.String()).To(HavePrefix("mpdmux dev"))
			Expect(conf.Addr).To(Equal("localhost:6600"))
		})

		It("lets flags override the config", func() {
			RootCmd.SetOut(&bytes.Buffer{})
			RootCmd.SetArgs([]string{"version", "--addr", "music.local:6600", "--network", "tcp4"})

			Expect(RootCmd.Execute()).To(Succeed())
			Expect(conf.Addr).To(Equal("music.local:6600"))
			Expect(conf.Network).To(Equal("tcp4"))
		})
	})
})
