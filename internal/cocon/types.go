package cocon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Meeting is one conference session as reported by the room server.
type Meeting struct {
	ID    int    `json:"Id"`
	Title string `json:"Title"`
	State string `json:"State"`
}

// Delegate is a seat holder. VotingRight is only authoritative on the
// full-registry call; the in-meeting call may omit it.
type Delegate struct {
	ID          int    `json:"Id"`
	Name        string `json:"Name"`
	VotingRight bool   `json:"VotingRight"`
}

// VotingOption maps an option id to its display label ("YES", "NO", ...).
// Option id 0 means no vote cast.
type VotingOption struct {
	ID   int    `json:"Id"`
	Name string `json:"Name"`
}

// AgendaItem is one item on the meeting agenda. State "active" marks the item
// currently up for vote.
type AgendaItem struct {
	ID            int            `json:"Id"`
	Title         string         `json:"Title"`
	State         string         `json:"State"`
	VotingOptions []VotingOption `json:"VotingOptions"`
}

// Notification is one decoded record from the live stream. The concrete types
// below form a closed set; anything the server pushes outside it is discarded
// before it reaches a consumer.
type Notification interface {
	kind() string
}

// MeetingStatus reports a meeting lifecycle change ("Running", "Ended", ...).
type MeetingStatus struct {
	MeetingID int    `json:"MeetingId"`
	State     string `json:"State"`
}

// AgendaItemChange reports an agenda item changing state.
type AgendaItemChange struct {
	AgendaItem
}

// RosterUpdate carries a fresh list of delegates in the meeting.
type RosterUpdate struct {
	Delegates []Delegate
}

// VotingStateChange reports the ballot lifecycle: Start, Stop, Pause, Clear.
type VotingStateChange struct {
	ID    int    `json:"Id"`
	State string `json:"State"`
}

// IndividualResult is one delegate's cast vote.
type IndividualResult struct {
	DelegateID int `json:"DelegateId"`
	OptionID   int `json:"VotingOptionId"`
}

// IndividualResults carries per-delegate votes for the current ballot.
type IndividualResults struct {
	Results []IndividualResult `json:"VotingResults"`
}

// VoteCount wraps the count the server reports per option.
type VoteCount struct {
	Count int `json:"Count"`
}

// OptionTotal is the aggregate count for one voting option.
type OptionTotal struct {
	Name  string    `json:"Name"`
	Votes VoteCount `json:"Votes"`
}

// GeneralResults carries the authoritative aggregate totals for the current
// ballot. Totals replace local state; they are not incremental.
type GeneralResults struct {
	Results GeneralResultsBody `json:"VotingResults"`
}

// GeneralResultsBody is the inner envelope of a GeneralResults notification.
type GeneralResultsBody struct {
	Options []OptionTotal `json:"Options"`
}

func (*MeetingStatus) kind() string     { return "MeetingStatus" }
func (*AgendaItemChange) kind() string  { return "AgendaItem" }
func (*RosterUpdate) kind() string      { return "Delegates" }
func (*VotingStateChange) kind() string { return "VotingState" }
func (*IndividualResults) kind() string { return "IndividualVotingResults" }
func (*GeneralResults) kind() string    { return "GeneralVotingResults" }

// Model is a server-side notification channel that can be subscribed to or
// suppressed.
type Model string

const (
	ModelMicrophone     Model = "Microphone"
	ModelTimer          Model = "Timer"
	ModelAudio          Model = "Audio"
	ModelLogging        Model = "Logging"
	ModelInterpretation Model = "Interpretation"
	ModelVoting         Model = "Voting"
	ModelDelegate       Model = "Delegate"
	ModelMeetingAgenda  Model = "Meeting_Agenda"
)

// Response is a request/response payload, keyed by the operation-result tag
// the server wraps each reply in (e.g. "GetMeetings").
type Response map[string]json.RawMessage

// Decode unmarshals the payload under key into v.
func (r Response) Decode(key string, v any) error {
	body, ok := r[key]
	if !ok {
		return fmt.Errorf("response missing %q", key)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Source is the boundary to the conference-control server: blocking
// request/response calls plus the live notification stream. Client implements
// it against the real wire protocol; tests substitute fakes.
type Source interface {
	Send(ctx context.Context, endpoint string, params url.Values) (Response, error)
	Notifications() <-chan Notification
	Unsubscribe(ctx context.Context, models []Model) error
	Close() error
}
