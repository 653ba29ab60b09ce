package client

// Subsystem names a part of the daemon that reported a change. Names the
// daemon adds in later versions are passed through as they are.
type Subsystem string

const (
	SubsystemDatabase       Subsystem = "database"
	SubsystemMessage        Subsystem = "message"
	SubsystemMixer          Subsystem = "mixer"
	SubsystemMount          Subsystem = "mount"
	SubsystemNeighbor       Subsystem = "neighbor"
	SubsystemOptions        Subsystem = "options"
	SubsystemOutput         Subsystem = "output"
	SubsystemPartition      Subsystem = "partition"
	SubsystemPlayer         Subsystem = "player"
	SubsystemPlaylist       Subsystem = "playlist"
	SubsystemSticker        Subsystem = "sticker"
	SubsystemStoredPlaylist Subsystem = "stored_playlist"
	SubsystemSubscription   Subsystem = "subscription"
	SubsystemUpdate         Subsystem = "update"
)

var knownSubsystems = map[Subsystem]struct{}{
	SubsystemDatabase:       {},
	SubsystemMessage:        {},
	SubsystemMixer:          {},
	SubsystemMount:          {},
	SubsystemNeighbor:       {},
	SubsystemOptions:        {},
	SubsystemOutput:         {},
	SubsystemPartition:      {},
	SubsystemPlayer:         {},
	SubsystemPlaylist:       {},
	SubsystemSticker:        {},
	SubsystemStoredPlaylist: {},
	SubsystemSubscription:   {},
	SubsystemUpdate:         {},
}

// Known reports whether the daemon documents this subsystem.
func (s Subsystem) Known() bool {
	_, ok := knownSubsystems[s]
	return ok
}

func subsystems(names []string) []Subsystem {
	if len(names) == 0 {
		return nil
	}

	out := make([]Subsystem, len(names))
	for i, name := range names {
		out[i] = Subsystem(name)
	}

	return out
}
