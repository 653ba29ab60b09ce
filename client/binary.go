package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/luma/mpdmux/protocol"
)

// maxPrealloc caps how much is allocated up front on the word of the first chunk.
const maxPrealloc = 16 << 20

// Blob is a binary resource put back together from its chunks.
type Blob struct {
	Data []byte

	// MIME is the type the first chunk announced, empty when it had none.
	MIME string
	Size int
}

// FetchBinary runs `<command> <uri> <offset>` from offset 0 until the size the
// first chunk announced has arrived. It fails with ErrChunkInconsistency when a
// later chunk announces a different size or overshoots it, and with
// ErrNoProgress when a chunk is empty before the end.
func (c *Conn) FetchBinary(ctx context.Context, command, uri string) (*Blob, error) {
	var blob *Blob

	for {
		offset := 0
		if blob != nil {
			offset = len(blob.Data)
		}

		frame, err := c.Command(ctx, protocol.NewCommand(command, uri, strconv.Itoa(offset)))
		if err != nil {
			return nil, err
		}

		size, err := chunkSize(frame)
		if err != nil {
			if blob == nil && errors.Is(err, ErrNoPayload) {
				return nil, err
			}

			return nil, fmt.Errorf("%w: chunk at offset %d: %v", ErrChunkInconsistency, offset, err)
		}

		if blob == nil {
			mime, _ := frame.Find(protocol.TypeKey)

			blob = &Blob{
				Data: make([]byte, 0, min(size, maxPrealloc)),
				MIME: mime,
				Size: size,
			}
		} else if size != blob.Size {
			return nil, fmt.Errorf("%w: size changed from %d to %d at offset %d", ErrChunkInconsistency, blob.Size, size, offset)
		}

		blob.Data = append(blob.Data, frame.Binary...)

		switch {
		case len(blob.Data) > blob.Size:
			return nil, fmt.Errorf("%w: received %d of %d bytes", ErrChunkInconsistency, len(blob.Data), blob.Size)
		case len(blob.Data) == blob.Size:
			return blob, nil
		case len(frame.Binary) == 0:
			return nil, fmt.Errorf("%w: stalled at %d of %d bytes", ErrNoProgress, len(blob.Data), blob.Size)
		}
	}
}

func chunkSize(frame *protocol.Frame) (int, error) {
	raw, ok := frame.Find(protocol.SizeKey)
	if !ok || !frame.HasBinary() {
		return 0, ErrNoPayload
	}

	size, err := strconv.Atoi(raw)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid size %q", raw)
	}

	return size, nil
}

// AlbumArt fetches the cover file stored next to uri.
func (c *Conn) AlbumArt(ctx context.Context, uri string) (*Blob, error) {
	return c.FetchBinary(ctx, protocol.CmdAlbumArt, uri)
}

// ReadPicture fetches the picture embedded in uri's tags.
func (c *Conn) ReadPicture(ctx context.Context, uri string) (*Blob, error) {
	return c.FetchBinary(ctx, protocol.CmdReadPicture, uri)
}

// Artwork prefers the embedded picture and falls back to the cover file when
// the song has none or the server does not know readpicture.
func (c *Conn) Artwork(ctx context.Context, uri string) (*Blob, error) {
	blob, err := c.ReadPicture(ctx, uri)
	if err == nil {
		return blob, nil
	}

	if !errors.Is(err, ErrNoPayload) && !protocol.IsAck(err, protocol.AckUnknown) {
		return nil, err
	}

	return c.AlbumArt(ctx, uri)
}
