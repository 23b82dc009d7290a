package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"

	"github.com/mmarchetti/votemon/internal/cocon"
	"github.com/mmarchetti/votemon/internal/projector"
	"github.com/mmarchetti/votemon/internal/snapshot"
)

// Monitor is the single logical writer: it seeds the projector from the
// bootstrap queries, then consumes the live notification stream and
// publishes a fresh snapshot after every accepted notification. All
// projector access happens on its one goroutine.
type Monitor struct {
	src         cocon.Source
	proj        *projector.Projector
	broadcaster snapshot.Broadcaster
	logger      *slog.Logger
	stop        chan struct{}
	wg          sync.WaitGroup
}

func New(src cocon.Source, proj *projector.Projector, broadcaster snapshot.Broadcaster, logger *slog.Logger) *Monitor {
	return &Monitor{
		src:         src,
		proj:        proj,
		broadcaster: broadcaster,
		logger:      logger,
		stop:        make(chan struct{}),
	}
}

func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run()
	}()
}

func (m *Monitor) Stop() {
	close(m.stop)
	m.wg.Wait()
}

func (m *Monitor) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-m.stop:
			cancel()
		case <-done:
		}
	}()

	// Live notifications queue up in the source's buffer while the bootstrap
	// calls are in flight; the loop below drains them afterwards, so seed
	// writes never interleave with live transitions.
	m.bootstrap(ctx)
	m.publish()

	suppress := []cocon.Model{
		cocon.ModelMicrophone,
		cocon.ModelTimer,
		cocon.ModelAudio,
		cocon.ModelLogging,
		cocon.ModelInterpretation,
	}
	if err := m.src.Unsubscribe(ctx, suppress); err != nil {
		m.logger.Warn("monitor: unsubscribe failed", "err", err)
	}

	for {
		select {
		case <-m.stop:
			return
		case n, ok := <-m.src.Notifications():
			if !ok {
				return
			}
			if n == nil {
				continue
			}
			if m.proj.Apply(n) {
				m.publish()
			}
		}
	}
}

// bootstrap establishes the initial consistent state. Any step failing is
// logged as a single unit; whatever partial state was established stands and
// the display degrades to placeholder titles.
func (m *Monitor) bootstrap(ctx context.Context) {
	if err := m.seed(ctx); err != nil {
		m.logger.Error("monitor: bootstrap failed", "err", err)
	}
}

func (m *Monitor) seed(ctx context.Context) error {
	resp, err := m.src.Send(ctx, "Meeting_Agenda/GetMeetingsForToday", nil)
	if err != nil {
		return err
	}
	var meetings []cocon.Meeting
	if err := resp.Decode("GetMeetings", &meetings); err != nil {
		return err
	}
	meeting, ok := activeMeeting(meetings)
	if !ok {
		return errors.New("no running meeting today")
	}
	m.proj.SetMeeting(meeting)
	m.logger.Info("monitor: found running meeting", "id", meeting.ID, "title", meeting.Title)

	resp, err = m.src.Send(ctx, "Delegate/GetDelegatesInMeeting",
		url.Values{"MeetingId": {strconv.Itoa(meeting.ID)}})
	if err != nil {
		return err
	}
	var inMeeting []cocon.Delegate
	if err := resp.Decode("GetDelegatesInMeeting", &inMeeting); err != nil {
		return err
	}

	resp, err = m.src.Send(ctx, "Delegate/GetAllDelegates", nil)
	if err != nil {
		return err
	}
	var registry []cocon.Delegate
	if err := resp.Decode("GetAllDelegates", &registry); err != nil {
		return err
	}

	// The in-meeting call defaults the voting-right flag; the full registry
	// is authoritative. Join by id, then keep voting-rights holders only.
	rights := make(map[int]bool, len(registry))
	for _, d := range registry {
		rights[d.ID] = d.VotingRight
	}
	roster := make([]cocon.Delegate, 0, len(inMeeting))
	for _, d := range inMeeting {
		d.VotingRight = rights[d.ID]
		if d.VotingRight {
			roster = append(roster, d)
		}
	}
	m.proj.SetRoster(roster)
	m.logger.Info("monitor: roster seeded", "delegates", len(roster))

	resp, err = m.src.Send(ctx, "Meeting_Agenda/GetAgendaItemInformationInRunningMeeting", nil)
	if err != nil {
		return err
	}
	var items []cocon.AgendaItem
	if err := resp.Decode("GetAgendaItemInformationInRunningMeeting", &items); err != nil {
		return err
	}
	item, ok := activeAgendaItem(items)
	if !ok {
		return fmt.Errorf("no active agenda item in meeting %d", meeting.ID)
	}
	m.proj.SetAgendaItem(item)
	m.logger.Info("monitor: agenda item seeded", "title", item.Title)
	return nil
}

func (m *Monitor) publish() {
	if m.broadcaster != nil {
		m.broadcaster.Publish(m.proj.Snapshot())
	}
}

func activeMeeting(meetings []cocon.Meeting) (cocon.Meeting, bool) {
	for _, mt := range meetings {
		if mt.State == "Running" {
			return mt, true
		}
	}
	return cocon.Meeting{}, false
}

func activeAgendaItem(items []cocon.AgendaItem) (cocon.AgendaItem, bool) {
	for _, it := range items {
		if it.State == "active" {
			return it, true
		}
	}
	return cocon.AgendaItem{}, false
}
