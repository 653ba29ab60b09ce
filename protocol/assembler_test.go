package protocol_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/mpdmux/protocol"
)

func frameWith(end protocol.Terminator, kv ...string) *protocol.Parsed {
	parsed := &protocol.Parsed{End: end}
	for i := 0; i+1 < len(kv); i += 2 {
		parsed.Frame.Fields = append(parsed.Frame.Fields, protocol.Field{Key: kv[i], Value: kv[i+1]})
	}

	return parsed
}

func ack(code, index int, command string) *protocol.Parsed {
	return &protocol.Parsed{
		End: protocol.EndAck,
		Ack: &protocol.AckError{Code: code, Index: index, Command: command, Message: "failed"},
	}
}

var _ = Describe("Assembler", func() {
	Describe("single command", func() {
		var asm *protocol.Assembler

		BeforeEach(func() {
			asm = protocol.NewAssembler(false)
		})

		It("finishes on OK with one frame", func() {
			resp, err := asm.Push(frameWith(protocol.EndOK, "volume", "40"))
			Expect(err).To(Succeed())
			Expect(resp.ErrorOrNil()).To(Succeed())

			frame, err := resp.Frame()
			Expect(err).To(Succeed())
			volume, _ := frame.Find("volume")
			Expect(volume).To(Equal("40"))
		})

		It("finishes on ACK without frames", func() {
			resp, err := asm.Push(ack(protocol.AckNoExist, 0, "play"))
			Expect(err).To(Succeed())
			Expect(resp.Frames).To(BeEmpty())
			Expect(protocol.IsAck(resp.ErrorOrNil(), protocol.AckNoExist)).To(BeTrue())

			_, err = resp.Frame()
			Expect(protocol.IsAck(err, protocol.AckNoExist)).To(BeTrue())
		})

		It("treats list_OK as malformed", func() {
			_, err := asm.Push(frameWith(protocol.EndListOK))
			Expect(errors.Is(err, protocol.ErrMalformedInput)).To(BeTrue())
		})
	})

	Describe("command list", func() {
		var asm *protocol.Assembler

		BeforeEach(func() {
			asm = protocol.NewAssembler(true)
		})

		It("yields one frame per item", func() {
			for i := 0; i < 3; i++ {
				resp, err := asm.Push(frameWith(protocol.EndListOK, "item", "x"))
				Expect(err).To(Succeed())
				Expect(resp).To(BeNil())
			}

			resp, err := asm.Push(frameWith(protocol.EndOK))
			Expect(err).To(Succeed())
			Expect(resp.Err).To(BeNil())
			Expect(resp.Frames).To(HaveLen(3))
		})

		It("keeps the frames before the failing item", func() {
			resp, err := asm.Push(frameWith(protocol.EndListOK))
			Expect(err).To(Succeed())
			Expect(resp).To(BeNil())

			resp, err = asm.Push(ack(protocol.AckArg, 1, "play"))
			Expect(err).To(Succeed())
			Expect(resp.Frames).To(HaveLen(1))
			Expect(resp.Err.Index).To(Equal(1))
		})

		It("treats fields before the closing OK as malformed", func() {
			_, err := asm.Push(frameWith(protocol.EndOK, "volume", "1"))
			Expect(errors.Is(err, protocol.ErrMalformedInput)).To(BeTrue())
		})

		It("starts over after a response", func() {
			_, _ = asm.Push(frameWith(protocol.EndListOK))
			_, _ = asm.Push(frameWith(protocol.EndOK))

			resp, err := asm.Push(frameWith(protocol.EndOK))
			Expect(err).To(Succeed())
			Expect(resp.Frames).To(BeEmpty())
		})
	})

	Describe("Abort", func() {
		It("reports a closed connection", func() {
			asm := protocol.NewAssembler(true)
			Expect(asm.Abort()).To(MatchError(protocol.ErrConnectionClosed))

			_, _ = asm.Push(frameWith(protocol.EndListOK))
			Expect(errors.Is(asm.Abort(), protocol.ErrConnectionClosed)).To(BeTrue())
		})
	})
})
