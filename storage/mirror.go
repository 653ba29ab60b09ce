package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/luma/mpdmux/client"
	"github.com/luma/mpdmux/protocol"
)

// Keys the mirror keeps up to date, each named after the command that fills it.
const (
	KeyStatus      = "status"
	KeyCurrentSong = "currentsong"
	KeyOutputs     = "outputs"
)

// MirroredKeys lists every key in the order a full refresh loads them.
var MirroredKeys = []string{KeyStatus, KeyCurrentSong, KeyOutputs}

var refreshOn = map[client.Subsystem][]string{
	client.SubsystemPlayer:   {KeyStatus, KeyCurrentSong},
	client.SubsystemPlaylist: {KeyStatus, KeyCurrentSong},
	client.SubsystemMixer:    {KeyStatus},
	client.SubsystemOptions:  {KeyStatus},
	client.SubsystemUpdate:   {KeyStatus},
	client.SubsystemOutput:   {KeyOutputs},
}

// Source is the part of a connection the mirror reads from.
type Source interface {
	Submit(ctx context.Context, req protocol.Request) (*protocol.Response, error)
	Subscribe(opts ...client.SubscribeOption) (*client.Subscription, error)
}

// Mirror keeps a JSON copy of the daemon's state in a Store and refreshes the
// parts a change event touches.
type Mirror struct {
	source Source
	store  Store
	log    *zap.Logger
}

func NewMirror(source Source, store Store, log *zap.Logger) *Mirror {
	return &Mirror{
		source: source,
		store:  store,
		log:    log.Named("mirror"),
	}
}

// Refresh reloads the given keys, or every key when none are given.
func (m *Mirror) Refresh(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		keys = MirroredKeys
	}

	for _, key := range keys {
		if err := m.load(ctx, key); err != nil {
			return err
		}
	}

	return nil
}

func (m *Mirror) load(ctx context.Context, key string) error {
	resp, err := m.source.Submit(ctx, protocol.NewRequest(protocol.NewCommand(key)))
	if err != nil {
		return fmt.Errorf("loading %s: %w", key, err)
	}

	if err := resp.ErrorOrNil(); err != nil {
		return fmt.Errorf("loading %s: %w", key, err)
	}

	var encoded []byte

	if key == KeyOutputs {
		encoded, err = EncodeFrames(splitFrames(resp.Frames, "outputid"))
	} else {
		encoded, err = EncodeFrame(&resp.Frames[0])
	}

	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	return m.store.SetRaw(ctx, key, encoded)
}

// Run loads everything once and then follows change events until ctx ends or
// the connection closes.
func (m *Mirror) Run(ctx context.Context) error {
	sub, err := m.source.Subscribe(client.WithPolicy(client.DropOldest))
	if err != nil {
		return err
	}

	defer sub.Close()

	if err := m.Refresh(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}

			if ev.Closed {
				return ev.Err
			}

			keys := affectedKeys(ev)
			if len(keys) == 0 {
				continue
			}

			m.log.Debug("Refreshing", zap.Strings("keys", keys))

			if err := m.Refresh(ctx, keys...); err != nil {
				if errors.Is(err, client.ErrConnectionClosed) || ctx.Err() != nil {
					return err
				}

				m.log.Warn("Failed to refresh state", zap.Strings("keys", keys), zap.Error(err))
			}
		}
	}
}

func affectedKeys(ev client.Event) []string {
	seen := make(map[string]bool)

	var keys []string
	for _, s := range ev.Subsystems {
		for _, key := range refreshOn[s] {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}

	return keys
}

// splitFrames breaks a single frame listing several entities into one frame
// per entity, each starting at a field named first.
func splitFrames(frames []protocol.Frame, first string) []protocol.Frame {
	var out []protocol.Frame

	for _, frame := range frames {
		for _, field := range frame.Fields {
			if field.Key == first || len(out) == 0 {
				out = append(out, protocol.Frame{})
			}

			last := &out[len(out)-1]
			last.Fields = append(last.Fields, field)
		}
	}

	return out
}
