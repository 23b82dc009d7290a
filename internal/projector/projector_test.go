package projector_test

import (
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/mmarchetti/votemon/internal/cocon"
	"github.com/mmarchetti/votemon/internal/projector"
	"github.com/mmarchetti/votemon/internal/snapshot"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	return func() time.Time { return t }
}

// seeded returns a projector bootstrapped with the Alice/Bob/Carlo roster and
// a YES/NO agenda item.
func seeded(t *testing.T) *projector.Projector {
	t.Helper()
	p := projector.New("ROOM 1", 16)
	p.SetNow(fixedClock())
	p.SetMeeting(cocon.Meeting{ID: 3, Title: "Plenary", State: "Running"})
	p.SetAgendaItem(cocon.AgendaItem{
		ID:    10,
		Title: "Item 1",
		State: "active",
		VotingOptions: []cocon.VotingOption{
			{ID: 1, Name: "YES"},
			{ID: 2, Name: "NO"},
		},
	})
	p.SetRoster([]cocon.Delegate{
		{ID: 1, Name: "Alice", VotingRight: true},
		{ID: 2, Name: "Bob", VotingRight: true},
		{ID: 3, Name: "Carlo", VotingRight: true},
	})
	return p
}

func voteOf(t *testing.T, s snapshot.Snapshot, name string) string {
	t.Helper()
	for _, col := range s.Columns {
		for _, tile := range col {
			if tile[0] == name {
				return tile[1]
			}
		}
	}
	t.Fatalf("no tile for %s in snapshot", name)
	return ""
}

func TestShowResultsOnlyAfterStop(t *testing.T) {
	p := seeded(t)
	steps := []struct {
		state string
		want  bool
	}{
		{"Start", false},
		{"Pause", false},
		{"Stop", true},
		{"Start", false},
		{"Stop", true},
		{"Clear", false},
	}
	for _, step := range steps {
		p.Apply(&cocon.VotingStateChange{ID: 7, State: step.state})
		if got := p.Snapshot().ShowResults; got != step.want {
			t.Errorf("after %s: show_results = %v, want %v", step.state, got, step.want)
		}
	}
}

func TestClearResetsEverything(t *testing.T) {
	p := seeded(t)
	p.Apply(&cocon.VotingStateChange{ID: 7, State: "Start"})
	p.Apply(&cocon.IndividualResults{Results: []cocon.IndividualResult{{DelegateID: 1, OptionID: 1}}})
	p.Apply(&cocon.GeneralResults{Results: cocon.GeneralResultsBody{
		Options: []cocon.OptionTotal{{Name: "Yes", Votes: cocon.VoteCount{Count: 1}}},
	}})

	p.Apply(&cocon.VotingStateChange{ID: 7, State: "Clear"})

	s := p.Snapshot()
	if len(s.Columns) != 0 {
		t.Errorf("columns after Clear: got %d, want 0", len(s.Columns))
	}
	want := map[string]int{"YES": 0, "ABST": 0, "NO": 0}
	if !reflect.DeepEqual(s.Counts, want) {
		t.Errorf("counts after Clear: got %v, want %v", s.Counts, want)
	}
	if s.ShowResults {
		t.Error("show_results should be false after Clear")
	}
	if got := p.CurrentBallotID(); got != -1 {
		t.Errorf("current ballot id after Clear: got %d, want -1", got)
	}
	if s.AgendaTitle != "Item 1" {
		t.Errorf("agenda title after Clear: got %q, want %q", s.AgendaTitle, "Item 1")
	}

	// a result for the discarded ballot is inert
	p.Apply(&cocon.IndividualResults{Results: []cocon.IndividualResult{{DelegateID: 2, OptionID: 2}}})
	if got := len(p.Snapshot().Columns); got != 0 {
		t.Errorf("stale individual result resurrected %d columns", got)
	}
}

func TestColumnChunking(t *testing.T) {
	p := projector.New("ROOM 1", 2)
	p.SetNow(fixedClock())
	roster := []cocon.Delegate{
		{ID: 1, Name: "Argentina", VotingRight: true},
		{ID: 2, Name: "Brazil", VotingRight: true},
		{ID: 3, Name: "Chile", VotingRight: true},
		{ID: 4, Name: "Denmark", VotingRight: true},
		{ID: 5, Name: "Estonia", VotingRight: true},
	}
	p.SetRoster(roster)
	p.Apply(&cocon.VotingStateChange{ID: 1, State: "Start"})

	s := p.Snapshot()
	if got, want := len(s.Columns), 3; got != want { // ceil(5/2)
		t.Fatalf("columns: got %d, want %d", got, want)
	}

	var names []string
	for _, col := range s.Columns {
		if len(col) > 2 {
			t.Errorf("column holds %d tiles, page size is 2", len(col))
		}
		for _, tile := range col {
			names = append(names, tile[0])
		}
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("flattened columns not sorted: %v", names)
	}
	if len(names) != len(roster) {
		t.Errorf("flattened columns hold %d names, want %d", len(names), len(roster))
	}
}

func TestIndividualResultIdempotent(t *testing.T) {
	p := seeded(t)
	p.Apply(&cocon.VotingStateChange{ID: 7, State: "Start"})

	result := &cocon.IndividualResults{Results: []cocon.IndividualResult{{DelegateID: 1, OptionID: 1}}}
	p.Apply(result)
	first := voteOf(t, p.Snapshot(), "Alice")
	p.Apply(result)
	second := voteOf(t, p.Snapshot(), "Alice")

	if first != "YES" || second != "YES" {
		t.Errorf("replayed result changed vote: first %q, second %q", first, second)
	}
}

func TestUnknownDelegateAndOptionAreNoOps(t *testing.T) {
	p := seeded(t)
	p.Apply(&cocon.VotingStateChange{ID: 7, State: "Start"})

	p.Apply(&cocon.IndividualResults{Results: []cocon.IndividualResult{
		{DelegateID: 99, OptionID: 1}, // not in roster
		{DelegateID: 1, OptionID: 42}, // unknown option
		{DelegateID: 2, OptionID: 0},  // no vote cast
	}})

	s := p.Snapshot()
	if got := voteOf(t, s, "Alice"); got != "" {
		t.Errorf("unknown option produced label %q", got)
	}
	if got := voteOf(t, s, "Bob"); got != "" {
		t.Errorf("option 0 produced label %q", got)
	}
}

func TestTallyOverlayReplaces(t *testing.T) {
	p := seeded(t)
	p.Apply(&cocon.GeneralResults{Results: cocon.GeneralResultsBody{
		Options: []cocon.OptionTotal{
			{Name: "Yes", Votes: cocon.VoteCount{Count: 3}},
			{Name: "No", Votes: cocon.VoteCount{Count: 1}},
		},
	}})
	p.Apply(&cocon.GeneralResults{Results: cocon.GeneralResultsBody{
		Options: []cocon.OptionTotal{{Name: "Yes", Votes: cocon.VoteCount{Count: 5}}},
	}})

	want := map[string]int{"YES": 5, "ABST": 0, "NO": 0}
	if got := p.Snapshot().Counts; !reflect.DeepEqual(got, want) {
		t.Errorf("counts: got %v, want %v", got, want)
	}
}

func TestBallotLifecycleScenario(t *testing.T) {
	p := seeded(t)

	p.Apply(&cocon.VotingStateChange{ID: 7, State: "Start"})
	s := p.Snapshot()
	for _, name := range []string{"Alice", "Bob", "Carlo"} {
		if got := voteOf(t, s, name); got != "" {
			t.Errorf("%s starts with label %q, want empty", name, got)
		}
	}

	p.Apply(&cocon.IndividualResults{Results: []cocon.IndividualResult{{DelegateID: 1, OptionID: 1}}})
	s = p.Snapshot()
	if got := voteOf(t, s, "Alice"); got != "YES" {
		t.Errorf("Alice: got %q, want YES", got)
	}
	if got := voteOf(t, s, "Bob"); got != "" {
		t.Errorf("Bob: got %q, want empty", got)
	}

	p.Apply(&cocon.VotingStateChange{ID: 7, State: "Stop"})
	if !p.Snapshot().ShowResults {
		t.Error("show_results should be true after Stop")
	}

	p.Apply(&cocon.GeneralResults{Results: cocon.GeneralResultsBody{
		Options: []cocon.OptionTotal{{Name: "Yes", Votes: cocon.VoteCount{Count: 1}}},
	}})
	want := map[string]int{"YES": 1, "ABST": 0, "NO": 0}
	if got := p.Snapshot().Counts; !reflect.DeepEqual(got, want) {
		t.Errorf("counts: got %v, want %v", got, want)
	}

	p.Apply(&cocon.VotingStateChange{ID: 7, State: "Clear"})
	s = p.Snapshot()
	if len(s.Columns) != 0 || s.ShowResults {
		t.Errorf("after Clear: columns=%d show_results=%v", len(s.Columns), s.ShowResults)
	}
	if !reflect.DeepEqual(s.Counts, map[string]int{"YES": 0, "ABST": 0, "NO": 0}) {
		t.Errorf("counts after Clear: got %v", s.Counts)
	}
}

func TestRosterUpdateLeavesExistingBallot(t *testing.T) {
	p := seeded(t)
	p.Apply(&cocon.VotingStateChange{ID: 7, State: "Start"})

	p.Apply(&cocon.RosterUpdate{Delegates: []cocon.Delegate{
		{ID: 4, Name: "Dora", VotingRight: true},
		{ID: 5, Name: "Observer", VotingRight: false},
	}})

	// ballot 7 keeps its original vote map
	s := p.Snapshot()
	if got := voteOf(t, s, "Alice"); got != "" {
		t.Errorf("Alice gone from existing ballot: %q", got)
	}

	// a new ballot is seeded from the new roster, voting-rights only
	p.Apply(&cocon.VotingStateChange{ID: 8, State: "Start"})
	s = p.Snapshot()
	if got := voteOf(t, s, "Dora"); got != "" {
		t.Errorf("Dora: got %q, want empty", got)
	}
	total := 0
	for _, col := range s.Columns {
		total += len(col)
	}
	if total != 1 {
		t.Errorf("new ballot has %d tiles, want 1 (no voting right excluded)", total)
	}
}

func TestResultBeforeAnyBallotIsInert(t *testing.T) {
	p := seeded(t)
	ok := p.Apply(&cocon.IndividualResults{Results: []cocon.IndividualResult{{DelegateID: 1, OptionID: 1}}})
	if !ok {
		t.Error("individual result should be accepted even when inert")
	}
	if got := len(p.Snapshot().Columns); got != 0 {
		t.Errorf("columns: got %d, want 0", got)
	}
}

func TestMeetingEndedAndAgendaTitles(t *testing.T) {
	p := seeded(t)
	if got := p.Snapshot().AgendaTitle; got != "Item 1" {
		t.Fatalf("seeded agenda title: got %q", got)
	}

	p.Apply(&cocon.AgendaItemChange{AgendaItem: cocon.AgendaItem{ID: 11, Title: "Item 2", State: "active"}})
	if got := p.Snapshot().AgendaTitle; got != "Item 2" {
		t.Errorf("active agenda change: got %q, want Item 2", got)
	}

	// non-active agenda items are ignored
	p.Apply(&cocon.AgendaItemChange{AgendaItem: cocon.AgendaItem{ID: 12, Title: "Item 3", State: "planned"}})
	if got := p.Snapshot().AgendaTitle; got != "Item 2" {
		t.Errorf("planned agenda change applied: got %q", got)
	}

	p.Apply(&cocon.MeetingStatus{MeetingID: 3, State: "Ended"})
	if got := p.Snapshot().AgendaTitle; got != "Meeting ended" {
		t.Errorf("meeting ended: got %q", got)
	}
}

func TestPlaceholderTitles(t *testing.T) {
	p := projector.New("ROOM 1", 16)
	p.SetNow(fixedClock())
	if got := p.Snapshot().AgendaTitle; got != "Waiting for meeting…" {
		t.Errorf("initial agenda title: got %q", got)
	}

	// a Clear with no agenda item known falls back to the vote placeholder
	p.Apply(&cocon.VotingStateChange{ID: 1, State: "Clear"})
	if got := p.Snapshot().AgendaTitle; got != "Waiting for vote…" {
		t.Errorf("agenda title after Clear: got %q", got)
	}
}

func TestSnapshotDeterministic(t *testing.T) {
	p := seeded(t)
	p.Apply(&cocon.VotingStateChange{ID: 7, State: "Start"})
	a := p.Snapshot()
	b := p.Snapshot()
	if !reflect.DeepEqual(a, b) {
		t.Errorf("snapshots differ for identical state:\n%v\n%v", a, b)
	}
	if a.Datetime != "Date 2026-03-14 Time 10:30" {
		t.Errorf("datetime format: got %q", a.Datetime)
	}
}
