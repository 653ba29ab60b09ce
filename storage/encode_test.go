package storage_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/mpdmux/protocol"
	"github.com/luma/mpdmux/storage"
)

var _ = Describe("storage / EncodeFrame", func() {
	It("maps fields to properties", func() {
		frame := &protocol.Frame{Fields: []protocol.Field{
			{Key: "volume", Value: "50"},
			{Key: "state", Value: "play"},
		}}

		encoded, err := storage.EncodeFrame(frame)
		Expect(err).To(Succeed())
		Expect(encoded).To(MatchJSON(`{"volume":"50","state":"play"}`))
	})

	It("collects repeated keys into arrays, in order", func() {
		frame := &protocol.Frame{Fields: []protocol.Field{
			{Key: "Genre", Value: "House"},
			{Key: "Title", Value: "One More Time"},
			{Key: "Genre", Value: "Electronic"},
			{Key: "Genre", Value: "French"},
		}}

		encoded, err := storage.EncodeFrame(frame)
		Expect(err).To(Succeed())
		Expect(encoded).To(MatchJSON(`{"Genre":["House","Electronic","French"],"Title":"One More Time"}`))
	})

	It("leaves binary payloads out", func() {
		frame := &protocol.Frame{
			Fields: []protocol.Field{{Key: "size", Value: "3"}, {Key: "binary", Value: "3"}},
			Binary: []byte{0xff, 0xd8, 0xff},
		}

		encoded, err := storage.EncodeFrame(frame)
		Expect(err).To(Succeed())
		Expect(encoded).To(MatchJSON(`{"size":"3","binary":"3"}`))
	})

	It("encodes several frames as an array", func() {
		frames := []protocol.Frame{
			{Fields: []protocol.Field{{Key: "outputid", Value: "0"}}},
			{Fields: []protocol.Field{{Key: "outputid", Value: "1"}}},
		}

		encoded, err := storage.EncodeFrames(frames)
		Expect(err).To(Succeed())
		Expect(encoded).To(MatchJSON(`[{"outputid":"0"},{"outputid":"1"}]`))
	})
})
