package connection

// Channel selects the data or command side of a Connection.
type Channel int

const (
	DataChannel Channel = iota
	CommandChannel
)

func (c Channel) String() string {
	if c == CommandChannel {
		return "command"
	}
	return "data"
}

// State is the readiness of one channel.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateInitialized
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "CONFIGURED"
	case StateInitialized:
		return "INITIALIZED"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNCONFIGURED"
	}
}

// ChannelState derives the readiness stage of one channel from the
// connection's predicates.
func ChannelState(c Connection, ch Channel) State {
	configured, initialized, connected := c.DataConfigured, c.DataInitialized, c.DataConnected
	if ch == CommandChannel {
		configured, initialized, connected = c.CommandConfigured, c.CommandInitialized, c.CommandConnected
	}
	switch {
	case !configured():
		return StateUnconfigured
	case connected():
		return StateConnected
	case initialized():
		return StateInitialized
	default:
		return StateConfigured
	}
}
