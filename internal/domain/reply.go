package domain

// Reply paths, reported in logs and metrics.
const (
	PathNormal    = "normal"
	PathDenied    = "denied"
	PathEmergency = "emergency"
	PathEasterEgg = "easter_egg"
)

// QuickReply is a suggested follow-up button.
type QuickReply struct {
	Label       string
	MessageText string
}

// Reply is the transport-neutral response for one request.
type Reply struct {
	Text         string
	QuickReplies []QuickReply
	Intent       IntentKind
	Path         string
}
