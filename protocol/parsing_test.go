package protocol_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/mpdmux/protocol"
)

// feed hands chunks to p the way a connection does: append, parse until
// incomplete, drop what was consumed.
func feed(p *protocol.Parser, chunks ...[]byte) ([]*protocol.Parsed, error) {
	var (
		buf []byte
		out []*protocol.Parsed
	)

	for _, chunk := range chunks {
		buf = append(buf, chunk...)

		for {
			parsed, n, err := p.Parse(buf)
			if err != nil {
				return out, err
			}

			buf = buf[n:]

			if parsed == nil {
				break
			}

			out = append(out, parsed)
		}
	}

	return out, nil
}

func bytewise(data string) [][]byte {
	chunks := make([][]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		chunks = append(chunks, []byte{data[i]})
	}

	return chunks
}

func malformedError(err error) *protocol.MalformedInputError {
	var merr *protocol.MalformedInputError
	Expect(errors.As(err, &merr)).To(BeTrue())
	return merr
}

var _ = Describe("Parsing", func() {
	var parser *protocol.Parser

	BeforeEach(func() {
		parser = protocol.NewParser(protocol.Limits{})
	})

	Describe("ReadGreeting()", func() {
		It("parses the server name and version", func() {
			greeting, n, err := parser.ReadGreeting([]byte("OK MPD 0.23.5\nvolume: 1\n"))
			Expect(err).To(Succeed())
			Expect(n).To(Equal(14))
			Expect(greeting).To(Equal(&protocol.Greeting{Name: "MPD", Version: "0.23.5"}))
		})

		It("waits for the full line", func() {
			greeting, n, err := parser.ReadGreeting([]byte("OK MPD 0.2"))
			Expect(err).To(Succeed())
			Expect(n).To(BeZero())
			Expect(greeting).To(BeNil())
		})

		It("rejects anything that is not a greeting", func() {
			_, _, err := parser.ReadGreeting([]byte("HELLO\n"))
			Expect(errors.Is(err, protocol.ErrMalformedInput)).To(BeTrue())

			_, _, err = parser.ReadGreeting([]byte("OK MPD\n"))
			Expect(errors.Is(err, protocol.ErrMalformedInput)).To(BeTrue())
		})
	})

	Describe("Parse()", func() {
		It("keeps fields in order, duplicates included", func() {
			frames, err := feed(parser, []byte("file: a.flac\nTitle: A\nfile: b.flac\nTitle: B\nOK\n"))
			Expect(err).To(Succeed())
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].End).To(Equal(protocol.EndOK))
			Expect(frames[0].Frame.Fields).To(Equal([]protocol.Field{
				{Key: "file", Value: "a.flac"},
				{Key: "Title", Value: "A"},
				{Key: "file", Value: "b.flac"},
				{Key: "Title", Value: "B"},
			}))
			Expect(frames[0].Frame.All("file")).To(Equal([]string{"a.flac", "b.flac"}))
		})

		It("consumes complete field lines before the terminator arrives", func() {
			parsed, n, err := parser.Parse([]byte("volume: 50\nrepeat: 0\nrand"))
			Expect(err).To(Succeed())
			Expect(parsed).To(BeNil())
			Expect(n).To(Equal(21))
			Expect(parser.InProgress()).To(BeTrue())

			parsed, n, err = parser.Parse([]byte("random: 1\nOK\n"))
			Expect(err).To(Succeed())
			Expect(n).To(Equal(13))
			Expect(parsed.Frame.Fields).To(HaveLen(3))
			Expect(parser.InProgress()).To(BeFalse())
		})

		It("parses an empty reply", func() {
			frames, err := feed(parser, []byte("OK\n"))
			Expect(err).To(Succeed())
			Expect(frames[0].Frame.IsEmpty()).To(BeTrue())
		})

		It("accepts empty values", func() {
			frames, err := feed(parser, []byte("Title: \nName:\nOK\n"))
			Expect(err).To(Succeed())

			value, ok := frames[0].Frame.Find("Title")
			Expect(ok).To(BeTrue())
			Expect(value).To(BeEmpty())

			value, ok = frames[0].Frame.Find("Name")
			Expect(ok).To(BeTrue())
			Expect(value).To(BeEmpty())
		})

		It("ends list items on list_OK", func() {
			frames, err := feed(parser, []byte("volume: 1\nlist_OK\nlist_OK\nOK\n"))
			Expect(err).To(Succeed())
			Expect(frames).To(HaveLen(3))
			Expect(frames[0].End).To(Equal(protocol.EndListOK))
			Expect(frames[1].End).To(Equal(protocol.EndListOK))
			Expect(frames[2].End).To(Equal(protocol.EndOK))
		})

		It("rejects a line without a field separator", func() {
			_, err := feed(parser, []byte("garbage\n"))
			Expect(errors.Is(err, protocol.ErrMalformedInput)).To(BeTrue())
		})

		It("rejects a field name with spaces", func() {
			_, err := feed(parser, []byte("bad key: value\n"))
			Expect(errors.Is(err, protocol.ErrMalformedInput)).To(BeTrue())
		})

		It("rejects a line longer than the limit", func() {
			parser = protocol.NewParser(protocol.Limits{MaxLine: 8})

			_, err := feed(parser, []byte("aaaaaaaaaaaaaaa"))
			Expect(errors.Is(err, protocol.ErrMalformedInput)).To(BeTrue())
		})

		Describe("ACK", func() {
			It("parses code, index, command and message", func() {
				frames, err := feed(parser, []byte("ACK [5@1] {play} Bad song index\n"))
				Expect(err).To(Succeed())
				Expect(frames[0].End).To(Equal(protocol.EndAck))
				Expect(frames[0].Ack).To(Equal(&protocol.AckError{
					Code:    5,
					Index:   1,
					Command: "play",
					Message: "Bad song index",
				}))
			})

			It("allows an empty command", func() {
				frames, err := feed(parser, []byte("ACK [2@0] {} wrong number of arguments\n"))
				Expect(err).To(Succeed())
				Expect(frames[0].Ack.Command).To(BeEmpty())
				Expect(frames[0].Ack.Message).To(Equal("wrong number of arguments"))
			})

			It("renders like the server line", func() {
				ack := &protocol.AckError{Code: 50, Index: 0, Command: "albumart", Message: "No file exists"}
				Expect(ack.Error()).To(Equal("ACK [50@0] {albumart} No file exists"))
				Expect(protocol.IsAck(ack, protocol.AckNoExist)).To(BeTrue())
			})

			It("rejects an unparsable code or index", func() {
				_, err := feed(parser, []byte("ACK [x@1] {play} nope\n"))
				Expect(errors.Is(err, protocol.ErrMalformedInput)).To(BeTrue())

				_, _, err = protocol.NewParser(protocol.Limits{}).Parse([]byte("ACK [5@] {play} nope\n"))
				Expect(errors.Is(err, protocol.ErrMalformedInput)).To(BeTrue())

				_, _, err = protocol.NewParser(protocol.Limits{}).Parse([]byte("ACK 5@1 play\n"))
				Expect(errors.Is(err, protocol.ErrMalformedInput)).To(BeTrue())
			})
		})

		Describe("binary", func() {
			It("captures the payload verbatim, newlines included", func() {
				frames, err := feed(parser, []byte("size: 7\ntype: image/png\nbinary: 7\na\nb\nOK\n\nOK\n"))
				Expect(err).To(Succeed())
				Expect(frames).To(HaveLen(1))
				Expect(frames[0].Frame.Binary).To(Equal([]byte("a\nb\nOK\n")))

				value, _ := frames[0].Frame.Find(protocol.BinaryKey)
				Expect(value).To(Equal("7"))
			})

			It("does not consume the header until the payload is buffered", func() {
				parsed, n, err := parser.Parse([]byte("binary: 10\nabc"))
				Expect(err).To(Succeed())
				Expect(parsed).To(BeNil())
				Expect(n).To(BeZero())
				Expect(parser.InProgress()).To(BeFalse())
			})

			It("keeps an announced empty payload apart from no payload", func() {
				frames, err := feed(parser, []byte("binary: 0\n\nOK\n"))
				Expect(err).To(Succeed())
				Expect(frames[0].Frame.HasBinary()).To(BeTrue())
				Expect(frames[0].Frame.Binary).To(BeEmpty())
			})

			It("rejects a negative length at once", func() {
				_, err := feed(parser, []byte("binary: -1\n"))
				Expect(errors.Is(err, protocol.ErrMalformedInput)).To(BeTrue())
			})

			It("rejects a length above the limit at once", func() {
				parser = protocol.NewParser(protocol.Limits{MaxBinary: 16})

				_, err := feed(parser, []byte("binary: 17\n"))
				Expect(errors.Is(err, protocol.ErrMalformedInput)).To(BeTrue())
			})

			It("rejects a second payload in one frame", func() {
				_, err := feed(parser, []byte("binary: 1\na\nbinary: 1\nb\nOK\n"))
				Expect(errors.Is(err, protocol.ErrMalformedInput)).To(BeTrue())
			})

			It("reports where the newline after the payload is missing", func() {
				_, n, err := parser.Parse([]byte("binary: 3\nabcX"))
				Expect(n).To(BeZero())

				merr := malformedError(err)
				Expect(merr.Offset).To(Equal(13))
				Expect(merr.Length).To(Equal(1))
			})
		})

		It("yields the same frames one byte at a time as all at once", func() {
			stream := "file: a.flac\nfile: b.flac\nlist_OK\n" +
				"size: 9\nbinary: 4\n\n\nOK\nlist_OK\n" +
				"OK\n" +
				"changed: player\nchanged: mixer\nOK\n" +
				"ACK [50@0] {albumart} No file exists\n"

			whole, err := feed(protocol.NewParser(protocol.Limits{}), []byte(stream))
			Expect(err).To(Succeed())
			Expect(whole).To(HaveLen(5))

			split, err := feed(protocol.NewParser(protocol.Limits{}), bytewise(stream)...)
			Expect(err).To(Succeed())
			Expect(split).To(Equal(whole))
		})

		It("parses encoded fields back to the same sequence", func() {
			fields := []protocol.Field{
				{Key: "Artist", Value: "Daft Punk"},
				{Key: "Genre", Value: "Electronic"},
				{Key: "Genre", Value: "House: French"},
				{Key: "Comment", Value: ""},
			}

			var stream []byte
			for _, field := range fields {
				stream = append(stream, field.Key+": "+field.Value+"\n"...)
			}
			stream = append(stream, "OK\n"...)

			frames, err := feed(parser, stream)
			Expect(err).To(Succeed())
			Expect(frames[0].Frame.Fields).To(Equal(fields))
		})
	})
})
