package snapshot

// Tile is one delegate's cell on the vote wall: [name, vote label]. The label
// is empty until the delegate casts a vote.
type Tile [2]string

// Column is one fixed-size page of tiles.
type Column []Tile

// Snapshot is the full derived view pushed to viewers. Field names are the
// wire contract the display page consumes; a fresh value is built after every
// accepted notification and never mutated after publish.
type Snapshot struct {
	Title        string         `json:"title"`
	MeetingTitle string         `json:"meeting_title"`
	AgendaTitle  string         `json:"agenda_title"`
	Datetime     string         `json:"datetime"`
	Columns      []Column       `json:"columns"`
	Counts       map[string]int `json:"counts"`
	ShowResults  bool           `json:"show_results"`
	VotingState  string         `json:"voting_state"`
}

// Broadcaster pushes snapshots to connected viewers.
// A nil Broadcaster is safe to use -- Publish becomes a no-op.
type Broadcaster interface {
	Publish(s Snapshot)
}
