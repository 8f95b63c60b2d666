package broadcast

import (
	"encoding/json"

	"pomo/internal/status"
)

// Message is the JSON object pushed to status readers, one per line.
type Message struct {
	Status    string `json:"status"`
	Timer     string `json:"timer"`
	Active    bool   `json:"active"`
	Remaining int64  `json:"remaining"`
	Tag       string `json:"tag"`
	TotalTime int64  `json:"total_time"`
	Locked    bool   `json:"locked"`
}

// FromSnapshot converts a machine snapshot to its wire form.
func FromSnapshot(snap status.Snapshot) Message {
	return Message{
		Status:    string(snap.Phase),
		Timer:     snap.Formatted,
		Active:    snap.Active,
		Remaining: snap.RemainingSeconds,
		Tag:       snap.Tag,
		TotalTime: snap.TotalSeconds,
		Locked:    snap.Locked,
	}
}

// encode renders m as a newline-terminated JSON line.
func encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
