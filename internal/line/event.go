// Package line speaks the LINE Messaging API through the official SDK: it
// verifies and decodes webhook deliveries and sends reply and push
// messages.
package line

// Event types the engine handles. Others are acknowledged and ignored.
const (
	EventMessage  = "message"
	EventPostback = "postback"
	EventFollow   = "follow"
)

// Source types.
const (
	SourceUser  = "user"
	SourceGroup = "group"
	SourceRoom  = "room"
)

// Event is the part of one webhook event the engine acts on.
type Event struct {
	Type       string
	Source     Source
	ReplyToken string
	Text       string // text messages only
	Postback   string // postback data
}

// Source identifies who sent an event and from which chat.
type Source struct {
	Type    string
	UserID  string
	GroupID string
	RoomID  string
}

// Message is an outbound text message.
type Message struct {
	Text         string
	QuickActions []QuickAction
}

// QuickAction is a quick reply button that sends Data back as a postback.
type QuickAction struct {
	Label string
	Data  string
}

// MaxTextLength is the longest text a single message may carry.
const MaxTextLength = 5000

// NewTextMessage builds a text message, truncating overlong text.
func NewTextMessage(text string) Message {
	if r := []rune(text); len(r) > MaxTextLength {
		text = string(r[:MaxTextLength-1]) + "…"
	}
	return Message{Text: text}
}
