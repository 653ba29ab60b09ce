package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/luma/mpdmux/client"
	"github.com/luma/mpdmux/protocol"
	"github.com/luma/mpdmux/storage"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"

	defaultEventTimeout = 30 * time.Second
)

var (
	ErrBadRequest = errors.New("bad request")

	// Commands that would break the connection's own bookkeeping.
	reservedCommands = map[string]bool{
		protocol.CmdIdle:      true,
		protocol.CmdNoIdle:    true,
		protocol.CmdListBegin: true,
		protocol.CmdListEnd:   true,
		"close":               true,
		"command_list_begin":  true,
	}
)

func (h *HTTP) health(c *gin.Context) {
	state := h.daemon.State()
	greeting := h.daemon.Greeting()

	body, _ := sjson.SetBytes([]byte(`{}`), "state", state.String())
	body, _ = sjson.SetBytes(body, "server", greeting.Name)
	body, _ = sjson.SetBytes(body, "version", greeting.Version)

	status := http.StatusOK
	if state == client.StateClosed {
		status = http.StatusServiceUnavailable
	}

	c.Data(status, contentTypeJSON, body)
}

// command accepts {"command": "find", "args": ["artist", "Daft Punk"]} or
// {"commands": [...]} for a command list.
func (h *HTTP) command(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	req, err := parseRequest(raw)
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	resp, err := h.daemon.Submit(c.Request.Context(), req)
	if err != nil {
		h.log.Warn("Failed to submit", zap.String("request", req.String()), zap.Error(err))
		h.fail(c, statusFor(err), err)
		return
	}

	frames, err := storage.EncodeFrames(resp.Frames)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	body, err := sjson.SetRawBytes([]byte(`{}`), "frames", frames)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	status := http.StatusOK
	if resp.Err != nil {
		status = http.StatusUnprocessableEntity
		body = setAck(body, resp.Err)
	}

	c.Data(status, contentTypeJSON, body)
}

func (h *HTTP) state(c *gin.Context) {
	key := c.Query("key")

	var (
		value []byte
		err   error
	)

	if key == "" {
		value, err = h.store.Backup()
	} else {
		value, err = h.store.Get(c.Request.Context(), key)
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.fail(c, http.StatusNotFound, err)
	case err != nil:
		h.fail(c, http.StatusInternalServerError, err)
	default:
		c.Data(http.StatusOK, contentTypeJSON, value)
	}
}

func (h *HTTP) art(c *gin.Context) {
	uri := c.Query("uri")
	if uri == "" {
		h.fail(c, http.StatusBadRequest, fmt.Errorf("%w: missing uri", ErrBadRequest))
		return
	}

	blob, err := h.daemon.Artwork(c.Request.Context(), uri)
	if err != nil {
		h.fail(c, statusFor(err), err)
		return
	}

	mime := blob.MIME
	if mime == "" {
		mime = "application/octet-stream"
	}

	c.Data(http.StatusOK, mime, blob.Data)
}

// events waits for the next change event, answering 204 when none arrives
// before the timeout.
func (h *HTTP) events(c *gin.Context) {
	timeout := defaultEventTimeout

	if raw, ok := c.GetQuery("timeout"); ok {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			h.fail(c, http.StatusBadRequest, fmt.Errorf("%w: invalid timeout %q", ErrBadRequest, raw))
			return
		}

		timeout = d
	}

	sub, err := h.daemon.Subscribe(client.WithBuffer(1))
	if err != nil {
		h.fail(c, statusFor(err), err)
		return
	}

	defer sub.Close()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.Request.Context().Done():
		return

	case <-timer.C:
		c.Status(http.StatusNoContent)

	case ev, ok := <-sub.Events():
		if !ok || ev.Closed {
			err := ev.Err
			if err == nil {
				err = client.ErrConnectionClosed
			}

			h.fail(c, http.StatusServiceUnavailable, err)
			return
		}

		names := make([]string, len(ev.Subsystems))
		for i, s := range ev.Subsystems {
			names[i] = string(s)
		}

		body, _ := sjson.SetBytes([]byte(`{}`), "subsystems", names)
		c.Data(http.StatusOK, contentTypeJSON, body)
	}
}

func (h *HTTP) fail(c *gin.Context, status int, err error) {
	body, _ := sjson.SetBytes([]byte(`{}`), "error.message", err.Error())

	var ack *protocol.AckError
	if errors.As(err, &ack) {
		body = setAck(body, ack)
	}

	c.Data(status, contentTypeJSON, body)
}

func setAck(body []byte, ack *protocol.AckError) []byte {
	body, _ = sjson.SetBytes(body, "error.code", ack.Code)
	body, _ = sjson.SetBytes(body, "error.index", ack.Index)
	body, _ = sjson.SetBytes(body, "error.command", ack.Command)
	body, _ = sjson.SetBytes(body, "error.message", ack.Message)

	return body
}

func statusFor(err error) int {
	var ack *protocol.AckError

	switch {
	case errors.Is(err, protocol.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, client.ErrConnectionClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	case errors.Is(err, client.ErrNoPayload), protocol.IsAck(err, protocol.AckNoExist):
		return http.StatusNotFound
	case errors.As(err, &ack):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func parseRequest(raw []byte) (protocol.Request, error) {
	if !gjson.ValidBytes(raw) {
		return protocol.Request{}, fmt.Errorf("%w: body is not JSON", ErrBadRequest)
	}

	doc := gjson.ParseBytes(raw)

	if list := doc.Get("commands"); list.Exists() {
		if !list.IsArray() {
			return protocol.Request{}, fmt.Errorf("%w: commands must be an array", ErrBadRequest)
		}

		var cmds []protocol.Command
		for _, item := range list.Array() {
			cmd, err := parseCommand(item)
			if err != nil {
				return protocol.Request{}, err
			}

			cmds = append(cmds, cmd)
		}

		return protocol.NewListRequest(cmds...), nil
	}

	cmd, err := parseCommand(doc)
	if err != nil {
		return protocol.Request{}, err
	}

	return protocol.NewRequest(cmd), nil
}

func parseCommand(doc gjson.Result) (protocol.Command, error) {
	name := strings.TrimSpace(doc.Get("command").String())
	if name == "" {
		return protocol.Command{}, fmt.Errorf("%w: missing command", ErrBadRequest)
	}

	if reservedCommands[strings.ToLower(name)] {
		return protocol.Command{}, fmt.Errorf("%w: %s is not allowed", ErrBadRequest, name)
	}

	var args []string
	for _, arg := range doc.Get("args").Array() {
		args = append(args, arg.String())
	}

	cmd := protocol.NewCommand(name, args...)
	if err := cmd.Validate(); err != nil {
		return protocol.Command{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	return cmd, nil
}
