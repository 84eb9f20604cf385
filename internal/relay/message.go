package relay

import (
	"encoding/json"
	"fmt"

	"github.com/quantumlife/nostrboard/internal/core"
)

// Relay-to-client frame labels.
const (
	labelEvent  = "EVENT"
	labelEOSE   = "EOSE"
	labelClosed = "CLOSED"
	labelNotice = "NOTICE"
	labelOK     = "OK"
	labelAuth   = "AUTH"
)

// envelope is one decoded relay frame.
type envelope struct {
	Label   string
	SubID   string
	Event   *core.Event
	Message string
}

func parseEnvelope(data []byte) (envelope, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if len(raw) == 0 {
		return envelope{}, fmt.Errorf("empty frame")
	}

	var env envelope
	if err := json.Unmarshal(raw[0], &env.Label); err != nil {
		return envelope{}, fmt.Errorf("decode label: %w", err)
	}

	str := func(i int) (string, error) {
		if i >= len(raw) {
			return "", fmt.Errorf("%s frame missing element %d", env.Label, i)
		}
		var s string
		if err := json.Unmarshal(raw[i], &s); err != nil {
			return "", fmt.Errorf("%s frame element %d: %w", env.Label, i, err)
		}
		return s, nil
	}

	var err error
	switch env.Label {
	case labelEvent:
		if env.SubID, err = str(1); err != nil {
			return envelope{}, err
		}
		if len(raw) < 3 {
			return envelope{}, fmt.Errorf("EVENT frame missing event")
		}
		var ev core.Event
		if err := json.Unmarshal(raw[2], &ev); err != nil {
			return envelope{}, fmt.Errorf("decode event: %w", err)
		}
		env.Event = &ev
	case labelEOSE:
		if env.SubID, err = str(1); err != nil {
			return envelope{}, err
		}
	case labelClosed:
		if env.SubID, err = str(1); err != nil {
			return envelope{}, err
		}
		env.Message, _ = str(2)
	case labelNotice:
		if env.Message, err = str(1); err != nil {
			return envelope{}, err
		}
	}
	return env, nil
}

func reqFrame(subID string, filters []core.Filter) []any {
	frame := make([]any, 0, len(filters)+2)
	frame = append(frame, "REQ", subID)
	for _, f := range filters {
		frame = append(frame, f)
	}
	return frame
}

func closeFrame(subID string) []any {
	return []any{"CLOSE", subID}
}
