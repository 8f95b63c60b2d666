package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"pomo/internal/broadcast"
)

func TestStatusLine(t *testing.T) {
	tests := []struct {
		name  string
		msg   broadcast.Message
		style statusStyle
		want  string
	}{
		{name: "work running", msg: broadcast.Message{Status: "work", Timer: "24:59", Active: true}, want: "🍅 24:59"},
		{name: "break running", msg: broadcast.Message{Status: "break", Timer: "04:00", Active: true}, want: "☕ 04:00"},
		{name: "paused", msg: broadcast.Message{Status: "work", Timer: "40:00"}, want: "⏸ 40:00"},
		{name: "overtime", msg: broadcast.Message{Status: "work", Timer: "-00:02", Active: true}, want: "🍅 -00:02"},
		{name: "polybar", msg: broadcast.Message{Status: "break", Timer: "01:00", Active: true}, style: stylePolybar, want: "%{F#555}☕%{F-} 01:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusLine(tt.msg, tt.style); got != tt.want {
				t.Fatalf("statusLine = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteStatusJSON(t *testing.T) {
	var buf bytes.Buffer
	msg := broadcast.Message{Status: "work", Timer: "40:00", Remaining: 2400, Tag: "thesis", Locked: true}
	if err := writeStatus(&buf, msg, styleJSON); err != nil {
		t.Fatalf("writeStatus: %v", err)
	}
	var decoded broadcast.Message
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != msg {
		t.Fatalf("decoded %+v, want %+v", decoded, msg)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Fatal("json output must be newline terminated")
	}
}
