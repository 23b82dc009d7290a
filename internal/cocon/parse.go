package cocon

import (
	"encoding/json"
	"fmt"
)

// ParseNotification classifies one raw frame from the notification stream.
// It returns (nil, nil) for frames that are not structured notifications or
// whose kind is not one we track, so the caller can drop them without
// treating the stream as broken. A known kind with an undecodable payload is
// an error.
func ParseNotification(raw []byte) (Notification, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		// bare text or control frame
		return nil, nil
	}

	decode := func(key string, v any) error {
		if err := json.Unmarshal(envelope[key], v); err != nil {
			return fmt.Errorf("decode %s notification: %w", key, err)
		}
		return nil
	}

	switch {
	case has(envelope, "MeetingStatus"):
		var n MeetingStatus
		if err := decode("MeetingStatus", &n); err != nil {
			return nil, err
		}
		return &n, nil
	case has(envelope, "AgendaItem"):
		var n AgendaItemChange
		if err := decode("AgendaItem", &n); err != nil {
			return nil, err
		}
		return &n, nil
	case has(envelope, "Delegates"):
		var n RosterUpdate
		if err := decode("Delegates", &n.Delegates); err != nil {
			return nil, err
		}
		return &n, nil
	case has(envelope, "VotingState"):
		var n VotingStateChange
		if err := decode("VotingState", &n); err != nil {
			return nil, err
		}
		return &n, nil
	case has(envelope, "IndividualVotingResults"):
		var n IndividualResults
		if err := decode("IndividualVotingResults", &n); err != nil {
			return nil, err
		}
		return &n, nil
	case has(envelope, "GeneralVotingResults"):
		var n GeneralResults
		if err := decode("GeneralVotingResults", &n); err != nil {
			return nil, err
		}
		return &n, nil
	}
	// unknown kind: the server pushes more channels than we track
	return nil, nil
}

func has(envelope map[string]json.RawMessage, key string) bool {
	_, ok := envelope[key]
	return ok
}
