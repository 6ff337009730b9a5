package models

import (
	"errors"
	"fmt"
	"strings"
)

// Action is what a moderator asked for on a candidate.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ErrInvalidDecision is returned for callback payloads that are not a known action.
var ErrInvalidDecision = errors.New("invalid moderation decision")

// maxCallbackData is the Telegram limit for inline button payloads.
const maxCallbackData = 64

// Decision is a validated moderator event.
type Decision struct {
	Action Action
	PostID string
}

// ParseDecision parses the "<action>:<post id>" payload attached to moderation buttons.
func ParseDecision(data string) (Decision, error) {
	action, id, ok := strings.Cut(strings.TrimSpace(data), ":")
	if !ok || id == "" {
		return Decision{}, fmt.Errorf("%w: %q", ErrInvalidDecision, data)
	}

	switch Action(action) {
	case ActionApprove, ActionReject:
	default:
		return Decision{}, fmt.Errorf("%w: unknown action %q", ErrInvalidDecision, action)
	}

	return Decision{Action: Action(action), PostID: id}, nil
}

// CallbackData renders the button payload for d.
func (d Decision) CallbackData() string {
	data := string(d.Action) + ":" + d.PostID
	if len(data) > maxCallbackData {
		data = data[:maxCallbackData]
	}
	return data
}

// TargetStatus is the status a post moves to when d is applied.
func (d Decision) TargetStatus() Status {
	if d.Action == ActionApprove {
		return StatusPublished
	}
	return StatusRejected
}
