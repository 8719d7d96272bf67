package twitch

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/tctk/internal/domain"
)

// translator turns IRC lines into domain events. It remembers room state so
// partial ROOMSTATE updates can be reported as old/new pairs.
type translator struct {
	nick string
	now  func() time.Time

	mu    sync.Mutex
	rooms map[string]*domain.ChatRoom
}

func newTranslator(nick string, now func() time.Time) *translator {
	return &translator{
		nick:  strings.ToLower(nick),
		now:   now,
		rooms: make(map[string]*domain.ChatRoom),
	}
}

func (t *translator) translate(m *Message) []domain.Event {
	evt := func(kind domain.EventKind, channel string, payload any) []domain.Event {
		return []domain.Event{{Kind: kind, Channel: channel, ReceivedAt: t.now(), Payload: payload}}
	}
	channel := m.Channel()

	switch m.Command {
	case "376":
		return evt(domain.EventReady, "", domain.Ready{Nick: t.nick})
	case "PRIVMSG":
		return evt(domain.EventMessage, channel, t.chatMessage(m))
	case "USERNOTICE":
		switch m.Tags["msg-id"] {
		case "sub", "resub", "subgift", "submysterygift", "giftpaidupgrade", "primepaidupgrade":
			return evt(domain.EventSub, channel, domain.ChatSub{
				Room:          t.room(channel),
				SubType:       m.Tags["msg-id"],
				SubMessage:    m.Trailing(),
				SubPlan:       m.Tags["msg-param-sub-plan"],
				SubPlanName:   m.Tags["msg-param-sub-plan-name"],
				SystemMessage: m.Tags["system-msg"],
				Login:         m.Tags["login"],
			})
		case "raid":
			return evt(domain.EventRaid, channel, domain.Raid{
				Room:        t.room(channel),
				Raider:      m.Tags["msg-param-login"],
				ViewerCount: atoi(m.Tags["msg-param-viewerCount"]),
			})
		}
	case "ROOMSTATE":
		old, updated := t.applyRoomState(channel, m.Tags)
		return evt(domain.EventRoomStateChange, channel, domain.RoomStateChange{Old: old, New: updated})
	case "JOIN":
		user := strings.ToLower(m.Nick())
		if user == t.nick {
			return evt(domain.EventJoined, channel, domain.JoinedEvent{RoomName: channel, UserName: user})
		}
		return evt(domain.EventJoin, channel, domain.JoinEvent{Room: t.room(channel), UserName: user})
	case "PART":
		user := strings.ToLower(m.Nick())
		if user == t.nick {
			room := t.forget(channel)
			return evt(domain.EventLeft, channel, domain.LeftEvent{RoomName: channel, UserName: user, Room: room})
		}
		return evt(domain.EventUserLeft, channel, domain.LeftEvent{RoomName: channel, UserName: user, Room: t.room(channel)})
	case "CLEARMSG":
		return evt(domain.EventMessageDelete, channel, domain.MessageDelete{
			RoomName:  channel,
			UserName:  m.Tags["login"],
			MessageID: m.Tags["target-msg-id"],
			Message:   m.Trailing(),
		})
	case "CLEARCHAT":
		cleared := domain.ClearChat{
			RoomName:  channel,
			RoomID:    m.Tags["room-id"],
			BanUserID: m.Tags["target-user-id"],
			Duration:  atoi(m.Tags["ban-duration"]),
			SentAt:    atoi64(m.Tags["tmi-sent-ts"]),
		}
		if len(m.Params) > 1 {
			cleared.UserName = m.Trailing()
		} else {
			cleared.ClearedRoom = true
		}
		return evt(domain.EventChatCleared, channel, cleared)
	case "WHISPER":
		return evt(domain.EventWhisper, "", domain.Whisper{User: chatUser(m), Text: m.Trailing()})
	case "NOTICE":
		return evt(domain.EventNotice, channel, domain.Notice{
			RoomName: channel,
			MsgID:    m.Tags["msg-id"],
			Message:  m.Trailing(),
		})
	}
	return nil
}

func (t *translator) chatMessage(m *Message) domain.ChatMessage {
	return domain.ChatMessage{
		ID:               m.Tags["id"],
		Text:             strings.TrimSuffix(m.Trailing(), "\x01"),
		User:             chatUser(m),
		Room:             t.room(m.Channel()),
		Bits:             atoi(m.Tags["bits"]),
		FirstMessage:     m.Tags["first-msg"] == "1",
		SentTimestamp:    atoi64(m.Tags["tmi-sent-ts"]),
		ReplyParentMsgID: m.Tags["reply-parent-msg-id"],
		Emotes:           emotes(m.Tags["emotes"]),
		Tags:             m.Tags,
	}
}

func chatUser(m *Message) domain.ChatUser {
	badges := parseBadges(m.Tags["badges"])
	name := strings.ToLower(m.Nick())
	display := m.Tags["display-name"]
	if display == "" {
		display = name
	}
	_, vip := badges["vip"]
	return domain.ChatUser{
		Name:        name,
		DisplayName: display,
		Color:       m.Tags["color"],
		Badges:      badges,
		Mod:         m.Tags["mod"] == "1",
		Subscriber:  m.Tags["subscriber"] == "1",
		Turbo:       m.Tags["turbo"] == "1",
		VIP:         vip || m.Tags["vip"] == "1",
		UserType:    m.Tags["user-type"],
	}
}

// room returns a copy of the known state of channel.
func (t *translator) room(channel string) *domain.ChatRoom {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.rooms[channel]; ok {
		cp := *r
		return &cp
	}
	return nil
}

func (t *translator) forget(channel string) *domain.ChatRoom {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.rooms[channel]
	delete(t.rooms, channel)
	return r
}

func (t *translator) applyRoomState(channel string, tags map[string]string) (old, updated *domain.ChatRoom) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := domain.ChatRoom{Name: channel}
	if r, ok := t.rooms[channel]; ok {
		cp := *r
		old = &cp
		next = *r
	}
	if v, ok := tags["room-id"]; ok {
		next.RoomID = v
	}
	if v, ok := tags["emote-only"]; ok {
		next.IsEmoteOnly = v == "1"
	}
	if v, ok := tags["subs-only"]; ok {
		next.IsSubsOnly = v == "1"
	}
	if v, ok := tags["followers-only"]; ok {
		n := atoi(v)
		next.IsFollowersOn = n >= 0
		next.FollowersOnly = n
	}
	if v, ok := tags["slow"]; ok {
		next.Slow = atoi(v)
	}
	if v, ok := tags["r9k"]; ok {
		next.IsUniqueOnly = v == "1"
	}
	t.rooms[channel] = &next
	cp := next
	return old, &cp
}

// parseBadges parses "broadcaster/1,subscriber/12".
func parseBadges(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, b := range strings.Split(raw, ",") {
		k, v, _ := strings.Cut(b, "/")
		if k != "" {
			out[k] = v
		}
	}
	return out
}

// emotes parses "25:0-4,12-16/1902:6-10" into id -> positions.
func emotes(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, e := range strings.Split(raw, "/") {
		id, pos, ok := strings.Cut(e, ":")
		if ok && id != "" {
			out[id] = pos
		}
	}
	return out
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func atoi64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
