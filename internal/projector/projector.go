package projector

import (
	"sort"
	"strings"
	"time"

	"github.com/mmarchetti/votemon/internal/cocon"
	"github.com/mmarchetti/votemon/internal/snapshot"
)

// Placeholder titles shown while no real data is available.
const (
	waitingForMeeting = "Waiting for meeting…"
	waitingForVote    = "Waiting for vote…"
	meetingEnded      = "Meeting ended"
)

// DefaultPageSize is how many delegate tiles fit in one column.
const DefaultPageSize = 16

// Projector owns the canonical vote state and applies one notification at a
// time. It is not safe for concurrent use: exactly one goroutine (the
// monitor worker) mutates it and reads it; everyone else sees only the
// immutable snapshots it materializes.
type Projector struct {
	title    string
	pageSize int
	now      func() time.Time

	meeting    cocon.Meeting
	agendaItem cocon.AgendaItem
	roster     []cocon.Delegate

	// votes is keyed by ballot id, then delegate name. Stale ids accumulate
	// until a Clear discards the whole map.
	votes           map[int]map[string]string
	currentBallotID int

	counts       map[string]int
	showResults  bool
	votingState  string
	meetingTitle string
	agendaTitle  string
}

// New returns a Projector with no meeting context. title is the room name
// surfaced to viewers; pageSize <= 0 selects DefaultPageSize.
func New(title string, pageSize int) *Projector {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Projector{
		title:           title,
		pageSize:        pageSize,
		now:             time.Now,
		votes:           make(map[int]map[string]string),
		currentBallotID: -1,
		counts:          zeroCounts(),
		agendaTitle:     waitingForMeeting,
	}
}

// SetNow replaces the time source. Used in tests only.
func (p *Projector) SetNow(fn func() time.Time) {
	p.now = fn
}

// SetMeeting seeds the current meeting. Bootstrap only; live meeting changes
// arrive as MeetingStatus notifications.
func (p *Projector) SetMeeting(m cocon.Meeting) {
	p.meeting = m
	p.meetingTitle = m.Title
}

// SetAgendaItem seeds the active agenda item, falling back to a placeholder
// title when the item is empty.
func (p *Projector) SetAgendaItem(a cocon.AgendaItem) {
	p.agendaItem = a
	if a.Title != "" {
		p.agendaTitle = a.Title
	} else {
		p.agendaTitle = waitingForVote
	}
}

// SetRoster replaces the roster wholesale. Existing ballots keep the vote
// maps they were seeded with; only ballots created afterwards use the new
// roster.
func (p *Projector) SetRoster(ds []cocon.Delegate) {
	p.roster = ds
}

// CurrentBallotID returns the active ballot id, or -1 when none is active.
func (p *Projector) CurrentBallotID() int {
	return p.currentBallotID
}

// Apply runs one notification through the transition rules and reports
// whether it was accepted. Unrecognized notifications leave state untouched.
func (p *Projector) Apply(n cocon.Notification) bool {
	switch n := n.(type) {
	case *cocon.MeetingStatus:
		if n.State == "Ended" {
			p.agendaTitle = meetingEnded
		}
	case *cocon.AgendaItemChange:
		if n.State == "active" {
			p.agendaItem = n.AgendaItem
			p.agendaTitle = n.Title
		}
	case *cocon.RosterUpdate:
		roster := make([]cocon.Delegate, 0, len(n.Delegates))
		for _, d := range n.Delegates {
			if d.VotingRight {
				roster = append(roster, d)
			}
		}
		p.roster = roster
	case *cocon.VotingStateChange:
		p.applyVotingState(n)
	case *cocon.IndividualResults:
		p.applyIndividualResults(n)
	case *cocon.GeneralResults:
		counts := zeroCounts()
		for _, opt := range n.Results.Options {
			counts[strings.ToUpper(opt.Name)] = opt.Votes.Count
		}
		p.counts = counts
	default:
		return false
	}
	return true
}

func (p *Projector) applyVotingState(n *cocon.VotingStateChange) {
	switch n.State {
	case "Start", "Stop", "Pause":
		p.currentBallotID = n.ID
		if _, ok := p.votes[n.ID]; !ok {
			m := make(map[string]string, len(p.roster))
			for _, d := range p.roster {
				m[d.Name] = ""
			}
			p.votes[n.ID] = m
		}
	case "Clear":
		p.currentBallotID = -1
		p.votes = make(map[int]map[string]string)
		p.counts = zeroCounts()
		if p.agendaItem.Title != "" {
			p.agendaTitle = p.agendaItem.Title
		} else {
			p.agendaTitle = waitingForVote
		}
	}
	p.showResults = n.State == "Stop"
	p.votingState = n.State
}

func (p *Projector) applyIndividualResults(n *cocon.IndividualResults) {
	if p.currentBallotID == -1 {
		return
	}
	votes := p.votes[p.currentBallotID]
	if votes == nil {
		return
	}
	for _, r := range n.Results {
		d, ok := p.delegateByID(r.DelegateID)
		if !ok {
			continue // not in the roster, e.g. no voting rights
		}
		votes[d.Name] = p.optionLabel(r.OptionID)
	}
}

func (p *Projector) delegateByID(id int) (cocon.Delegate, bool) {
	for _, d := range p.roster {
		if d.ID == id {
			return d, true
		}
	}
	return cocon.Delegate{}, false
}

func (p *Projector) optionLabel(id int) string {
	if id == 0 {
		return ""
	}
	for _, opt := range p.agendaItem.VotingOptions {
		if opt.ID == id {
			return opt.Name
		}
	}
	return ""
}

// Snapshot materializes the externally visible view from current state. The
// only non-deterministic input is the clock.
func (p *Projector) Snapshot() snapshot.Snapshot {
	s := snapshot.Snapshot{
		Title:        p.title,
		MeetingTitle: p.meetingTitle,
		AgendaTitle:  p.agendaTitle,
		Datetime:     p.now().Format("Date 2006-01-02 Time 15:04"),
		Columns:      []snapshot.Column{},
		Counts:       make(map[string]int, len(p.counts)),
		ShowResults:  p.showResults,
		VotingState:  p.votingState,
	}
	for k, v := range p.counts {
		s.Counts[k] = v
	}
	if votes, ok := p.votes[p.currentBallotID]; ok {
		s.Columns = chunkVotes(votes, p.pageSize)
	}
	return s
}

// chunkVotes sorts the vote map by delegate name and slices it into
// fixed-size pages. Page boundaries are purely positional.
func chunkVotes(votes map[string]string, size int) []snapshot.Column {
	names := make([]string, 0, len(votes))
	for name := range votes {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := make([]snapshot.Column, 0, (len(names)+size-1)/size)
	for start := 0; start < len(names); start += size {
		end := min(start+size, len(names))
		col := make(snapshot.Column, 0, end-start)
		for _, name := range names[start:end] {
			col = append(col, snapshot.Tile{name, votes[name]})
		}
		columns = append(columns, col)
	}
	return columns
}

func zeroCounts() map[string]int {
	return map[string]int{"YES": 0, "ABST": 0, "NO": 0}
}
