package protocol

// Commands the connection layer issues on its own behalf. Everything else is
// built by callers with NewCommand.
const (
	CmdIdle        = "idle"
	CmdNoIdle      = "noidle"
	CmdPassword    = "password"
	CmdBinaryLimit = "binarylimit"
	CmdPing        = "ping"
	CmdStatus      = "status"
	CmdCurrentSong = "currentsong"
	CmdAlbumArt    = "albumart"
	CmdReadPicture = "readpicture"

	CmdListBegin = "command_list_ok_begin"
	CmdListEnd   = "command_list_end"
)

// Terminator is the line that ended a frame.
type Terminator int

const (
	// EndOK ends a complete response.
	EndOK Terminator = iota
	// EndListOK ends one item of a command list.
	EndListOK
	// EndAck ends a response with an error.
	EndAck
)

func (t Terminator) String() string {
	switch t {
	case EndOK:
		return "OK"
	case EndListOK:
		return "list_OK"
	case EndAck:
		return "ACK"
	default:
		return "unknown"
	}
}

// Field names with a meaning to the protocol layer.
const (
	BinaryKey  = "binary"
	ChangedKey = "changed"
	SizeKey    = "size"
	TypeKey    = "type"
)
