package domain

import "time"

// EventKind identifies the type of chat event delivered by the chat service.
type EventKind string

const (
	EventReady           EventKind = "ready"
	EventMessage         EventKind = "message"
	EventSub             EventKind = "sub"
	EventRaid            EventKind = "raid"
	EventRoomStateChange EventKind = "room_state_change"
	EventJoin            EventKind = "join"
	EventJoined          EventKind = "joined"
	EventLeft            EventKind = "left"
	EventUserLeft        EventKind = "user_left"
	EventMessageDelete   EventKind = "message_delete"
	EventChatCleared     EventKind = "chat_cleared"
	EventWhisper         EventKind = "whisper"
	EventNotice          EventKind = "notice"
)

// AllEventKinds lists every kind in delivery catalogue order.
var AllEventKinds = []EventKind{
	EventReady,
	EventMessage,
	EventSub,
	EventRaid,
	EventRoomStateChange,
	EventJoin,
	EventJoined,
	EventLeft,
	EventUserLeft,
	EventMessageDelete,
	EventChatCleared,
	EventWhisper,
	EventNotice,
}

// Event is a typed chat event as delivered to features.
type Event struct {
	Kind       EventKind
	Channel    string
	ReceivedAt time.Time
	Payload    any
}

// ChatUser describes the author of a chat message.
type ChatUser struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Color       string            `json:"color,omitempty"`
	Badges      map[string]string `json:"badges,omitempty"`
	Mod         bool              `json:"mod"`
	Subscriber  bool              `json:"subscriber"`
	Turbo       bool              `json:"turbo"`
	VIP         bool              `json:"vip"`
	UserType    string            `json:"user_type,omitempty"`
}

// ChatRoom holds the room settings reported by ROOMSTATE.
type ChatRoom struct {
	Name          string `json:"name"`
	RoomID        string `json:"room_id,omitempty"`
	IsEmoteOnly   bool   `json:"is_emote_only"`
	IsSubsOnly    bool   `json:"is_subs_only"`
	IsFollowersOn bool   `json:"is_followers_only"`
	FollowersOnly int    `json:"followers_only_delay"`
	Slow          int    `json:"slow"`
	IsUniqueOnly  bool   `json:"is_unique_only"`
}

// ChatMessage is the payload of EventMessage.
type ChatMessage struct {
	ID               string            `json:"id"`
	Text             string            `json:"text"`
	User             ChatUser          `json:"user"`
	Room             *ChatRoom         `json:"room,omitempty"`
	Bits             int               `json:"bits"`
	FirstMessage     bool              `json:"first"`
	SentTimestamp    int64             `json:"sent_timestamp"`
	ReplyParentMsgID string            `json:"reply_parent_msg_id,omitempty"`
	Emotes           map[string]string `json:"emotes,omitempty"`
	Tags             map[string]string `json:"-"`
}

// ChatSub is the payload of EventSub.
type ChatSub struct {
	Room          *ChatRoom `json:"room,omitempty"`
	SubType       string    `json:"sub_type"`
	SubMessage    string    `json:"sub_message"`
	SubPlan       string    `json:"sub_plan"`
	SubPlanName   string    `json:"sub_plan_name"`
	SystemMessage string    `json:"system_message"`
	Login         string    `json:"login"`
}

// Raid is the payload of EventRaid.
type Raid struct {
	Room        *ChatRoom `json:"room,omitempty"`
	Raider      string    `json:"raider"`
	ViewerCount int       `json:"viewer_count"`
}

// RoomStateChange is the payload of EventRoomStateChange.
type RoomStateChange struct {
	Old *ChatRoom `json:"old,omitempty"`
	New *ChatRoom `json:"new"`
}

// JoinEvent is the payload of EventJoin.
type JoinEvent struct {
	Room     *ChatRoom `json:"room,omitempty"`
	UserName string    `json:"user_name"`
}

// JoinedEvent is the payload of EventJoined (the bot itself joined a room).
type JoinedEvent struct {
	RoomName string `json:"room_name"`
	UserName string `json:"user_name"`
}

// LeftEvent is the payload of EventLeft and EventUserLeft.
type LeftEvent struct {
	RoomName string    `json:"room_name"`
	UserName string    `json:"user_name"`
	Room     *ChatRoom `json:"room,omitempty"`
}

// MessageDelete is the payload of EventMessageDelete.
type MessageDelete struct {
	RoomName  string `json:"room_name"`
	UserName  string `json:"user_name"`
	MessageID string `json:"message_id"`
	Message   string `json:"message"`
}

// ClearChat is the payload of EventChatCleared.
type ClearChat struct {
	RoomName    string `json:"room_name"`
	RoomID      string `json:"room_id,omitempty"`
	UserName    string `json:"user_name,omitempty"`
	BanUserID   string `json:"ban_user_id,omitempty"`
	Duration    int    `json:"duration"`
	SentAt      int64  `json:"sent_timestamp"`
	ClearedRoom bool   `json:"room_cleared"`
}

// Whisper is the payload of EventWhisper.
type Whisper struct {
	User ChatUser `json:"user"`
	Text string   `json:"message"`
}

// Notice is the payload of EventNotice.
type Notice struct {
	RoomName string `json:"room_name"`
	MsgID    string `json:"msg_id"`
	Message  string `json:"message"`
}

// Ready is the payload of EventReady.
type Ready struct {
	Nick string `json:"nick"`
}
