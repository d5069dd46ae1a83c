package event

// Kind identifies an event.
type Kind int

const (
	KindUnknown Kind = iota

	// Lifecycle events raised locally by the connection manager.
	KindConnect
	KindDisconnect
	KindConnectError

	// Events received from the server.
	KindNewMessage
	KindMessageHistory
	KindActiveUsers
	KindTyping
	KindError
)

// Outbound event names.
const (
	EmitJoinRoom    = "joinRoom"
	EmitLeaveRoom   = "leaveRoom"
	EmitSendMessage = "sendMessage"
	EmitTyping      = "typing"
)

var kindNames = map[Kind]string{
	KindConnect:        "connect",
	KindDisconnect:     "disconnect",
	KindConnectError:   "connect_error",
	KindNewMessage:     "newMessage",
	KindMessageHistory: "messageHistory",
	KindActiveUsers:    "activeUsers",
	KindTyping:         "typing",
	KindError:          "error",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind maps a wire name to a Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindUnknown, false
}

// Inbound reports whether the kind arrives from the server rather than
// being raised locally.
func (k Kind) Inbound() bool {
	return k >= KindNewMessage && k <= KindError
}
