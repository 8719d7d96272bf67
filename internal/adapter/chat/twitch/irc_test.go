package twitch

import (
	"reflect"
	"testing"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    *Message
		wantErr bool
	}{
		{
			name: "privmsg with tags",
			line: "@badges=moderator/1;display-name=Horse_Person00;mod=1 :horse_person00!horse_person00@horse_person00.tmi.twitch.tv PRIVMSG #thestreameast :a Multi-Raffle has begun\r\n",
			want: &Message{
				Tags:    map[string]string{"badges": "moderator/1", "display-name": "Horse_Person00", "mod": "1"},
				Prefix:  "horse_person00!horse_person00@horse_person00.tmi.twitch.tv",
				Command: "PRIVMSG",
				Params:  []string{"#thestreameast", "a Multi-Raffle has begun"},
			},
		},
		{
			name: "ping without prefix",
			line: "PING :tmi.twitch.tv",
			want: &Message{Tags: map[string]string{}, Command: "PING", Params: []string{"tmi.twitch.tv"}},
		},
		{
			name: "numeric with middle params",
			line: ":tmi.twitch.tv 376 tctkbot :>",
			want: &Message{Tags: map[string]string{}, Prefix: "tmi.twitch.tv", Command: "376", Params: []string{"tctkbot", ">"}},
		},
		{
			name: "escaped tag values",
			line: `@system-msg=5\sraiders\:\sok\;empty= :tmi.twitch.tv USERNOTICE #chan`,
			want: &Message{
				Tags:    map[string]string{"system-msg": "5 raiders; ok", "empty": ""},
				Prefix:  "tmi.twitch.tv",
				Command: "USERNOTICE",
				Params:  []string{"#chan"},
			},
		},
		{name: "empty", line: "", wantErr: true},
		{name: "tags only", line: "@a=b", wantErr: true},
		{name: "prefix only", line: ":tmi.twitch.tv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMessage(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseMessage() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMessageAccessors(t *testing.T) {
	m, err := ParseMessage(":bob!bob@bob.tmi.twitch.tv PRIVMSG #Chan :hello there")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Nick() != "bob" || m.Channel() != "Chan" || m.Trailing() != "hello there" {
		t.Errorf("unexpected accessors: nick=%q channel=%q trailing=%q", m.Nick(), m.Channel(), m.Trailing())
	}
	if m.Param(5) != "" {
		t.Error("out of range param must be empty")
	}

	server, _ := ParseMessage(":tmi.twitch.tv NOTICE * :Login authentication failed")
	if server.Nick() != "" {
		t.Errorf("server prefix has no nick, got %q", server.Nick())
	}
}
