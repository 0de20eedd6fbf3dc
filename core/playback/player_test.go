package playback

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"pitaradio/core/selection"
	"pitaradio/model"
)

type fakeSource struct {
	mu     sync.Mutex
	tracks map[string][]model.TrackView
	gates  map[string]chan struct{}
	err    error
	calls  []string
}

func (f *fakeSource) Tracks(ctx context.Context, genre string) ([]model.TrackView, error) {
	f.mu.Lock()
	f.calls = append(f.calls, genre)
	gate := f.gates[genre]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.tracks[genre], nil
}

type fakeOutput struct {
	mu     sync.Mutex
	played []int64
	err    error
}

func (f *fakeOutput) Play(ctx context.Context, t model.TrackView) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.played = append(f.played, t.ID)
	return nil
}
func (f *fakeOutput) Pause() error  { return nil }
func (f *fakeOutput) Resume() error { return nil }

// gatedOutput blocks Play of the tracks in gates until the gate is closed.
type gatedOutput struct {
	fakeOutput
	gates   map[int64]chan struct{}
	started chan int64
}

func (g *gatedOutput) Play(ctx context.Context, t model.TrackView) error {
	if gate := g.gates[t.ID]; gate != nil {
		g.started <- t.ID
		<-gate
	}
	return g.fakeOutput.Play(ctx, t)
}

type fakeReporter struct {
	mu    sync.Mutex
	claps []int64
	plays map[int64]int64
	err   error
}

func (f *fakeReporter) ReportClap(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claps = append(f.claps, id)
	return f.err
}

func (f *fakeReporter) ReportPlay(ctx context.Context, id, seconds int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.plays == nil {
		f.plays = map[int64]int64{}
	}
	f.plays[id] += seconds
	return f.err
}

func rockSource() *fakeSource {
	return &fakeSource{tracks: map[string][]model.TrackView{
		"Rock": {{ID: 1, Title: "A", Genre: "Rock"}, {ID: 2, Title: "B", Genre: "Rock", ClapCount: 4}},
		"Jazz": {},
	}}
}

func seeded() Option {
	return WithPicker(selection.NewPicker(rand.New(rand.NewSource(1))))
}

func TestSelectGenreStartsPlaying(t *testing.T) {
	out := &fakeOutput{}
	var transitions []Transition
	p := NewPlayer(rockSource(), out, &fakeReporter{}, seeded(), WithObserver(func(tr Transition) {
		transitions = append(transitions, tr)
	}))

	if p.State() != Idle {
		t.Fatalf("initial state = %s", p.State())
	}
	if err := p.SelectGenre(context.Background(), "Rock"); err != nil {
		t.Fatalf("SelectGenre() error = %v", err)
	}
	if p.State() != Playing {
		t.Errorf("state = %s, want playing", p.State())
	}
	cur, ok := p.Current()
	if !ok || (cur.ID != 1 && cur.ID != 2) {
		t.Errorf("Current() = %+v, %v", cur, ok)
	}
	if len(out.played) != 1 || out.played[0] != cur.ID {
		t.Errorf("played = %v", out.played)
	}
	if len(transitions) != 2 || transitions[0].To != Loading || transitions[1].To != Playing {
		t.Errorf("transitions = %+v", transitions)
	}
	if p.Genre() != "Rock" {
		t.Errorf("Genre() = %q", p.Genre())
	}
}

func TestSelectEmptyGenreGoesIdle(t *testing.T) {
	p := NewPlayer(rockSource(), &fakeOutput{}, &fakeReporter{})
	if err := p.SelectGenre(context.Background(), "Jazz"); err != nil {
		t.Fatal(err)
	}
	if p.State() != Idle {
		t.Errorf("state = %s, want idle", p.State())
	}
	if _, ok := p.Current(); ok {
		t.Error("Current() ok for empty genre")
	}
}

func TestSelectBlankGenreIsRejected(t *testing.T) {
	src := rockSource()
	src.tracks[""] = []model.TrackView{{ID: 1, Genre: "Rock"}, {ID: 7, Genre: "Jazz"}}
	out := &fakeOutput{}
	p := NewPlayer(src, out, &fakeReporter{})

	for _, genre := range []string{"", "   ", "\t"} {
		if err := p.SelectGenre(context.Background(), genre); !errors.Is(err, ErrNoGenre) {
			t.Errorf("SelectGenre(%q) error = %v, want ErrNoGenre", genre, err)
		}
	}
	if len(src.calls) != 0 {
		t.Errorf("source called with %q", src.calls)
	}
	if len(out.played) != 0 || p.State() != Idle {
		t.Errorf("played = %v, state %s", out.played, p.State())
	}

	// a blank selection leaves the running one alone
	if err := p.SelectGenre(context.Background(), "Rock"); err != nil {
		t.Fatal(err)
	}
	if err := p.SelectGenre(context.Background(), " "); !errors.Is(err, ErrNoGenre) {
		t.Fatalf("SelectGenre(blank) error = %v", err)
	}
	if p.State() != Playing || p.Genre() != "Rock" {
		t.Errorf("state %s genre %q after blank selection", p.State(), p.Genre())
	}
}

func TestSelectGenreSourceErrorGoesIdle(t *testing.T) {
	src := rockSource()
	src.err = errors.New("offline")
	p := NewPlayer(src, &fakeOutput{}, &fakeReporter{})
	if err := p.SelectGenre(context.Background(), "Rock"); !errors.Is(err, src.err) {
		t.Fatalf("SelectGenre() error = %v", err)
	}
	if p.State() != Idle {
		t.Errorf("state = %s", p.State())
	}
}

func TestSelectGenreOutputErrorGoesIdle(t *testing.T) {
	out := &fakeOutput{err: errors.New("no device")}
	p := NewPlayer(rockSource(), out, &fakeReporter{})
	if err := p.SelectGenre(context.Background(), "Rock"); !errors.Is(err, out.err) {
		t.Fatalf("SelectGenre() error = %v", err)
	}
	if p.State() != Idle {
		t.Errorf("state = %s", p.State())
	}
}

func TestStaleSelectionIsDiscarded(t *testing.T) {
	src := rockSource()
	src.tracks["Ambient"] = []model.TrackView{{ID: 9, Title: "Drift", Genre: "Ambient"}}
	gate := make(chan struct{})
	src.gates = map[string]chan struct{}{"Rock": gate}
	out := &fakeOutput{}
	p := NewPlayer(src, out, &fakeReporter{})

	slow := make(chan error, 1)
	go func() { slow <- p.SelectGenre(context.Background(), "Rock") }()

	// wait until the Rock fetch is in flight
	for p.State() != Loading {
		time.Sleep(time.Millisecond)
	}
	if err := p.SelectGenre(context.Background(), "Ambient"); err != nil {
		t.Fatalf("SelectGenre(Ambient) error = %v", err)
	}
	close(gate)

	if err := <-slow; !errors.Is(err, ErrStaleSelection) {
		t.Fatalf("stale SelectGenre() error = %v, want ErrStaleSelection", err)
	}
	cur, _ := p.Current()
	if cur.ID != 9 || p.Genre() != "Ambient" || p.State() != Playing {
		t.Errorf("current = %+v genre %q state %s", cur, p.Genre(), p.State())
	}
	if len(out.played) != 1 {
		t.Errorf("played = %v, stale list must not start playback", out.played)
	}
}

func TestSlowOutputDoesNotBlockReaders(t *testing.T) {
	src := &fakeSource{tracks: map[string][]model.TrackView{"Solo": {{ID: 5, Title: "Only"}}}}
	gate := make(chan struct{})
	out := &gatedOutput{gates: map[int64]chan struct{}{5: gate}, started: make(chan int64, 1)}
	p := NewPlayer(src, out, &fakeReporter{})

	done := make(chan error, 1)
	go func() { done <- p.SelectGenre(context.Background(), "Solo") }()
	<-out.started

	read := make(chan State, 1)
	go func() {
		p.Current()
		p.Genre()
		read <- p.State()
	}()
	select {
	case s := <-read:
		if s != Loading {
			t.Errorf("state during Play = %s, want loading", s)
		}
	case <-time.After(time.Second):
		t.Fatal("State() blocked behind Output.Play")
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("SelectGenre() error = %v", err)
	}
	if p.State() != Playing {
		t.Errorf("state = %s", p.State())
	}
}

func TestSelectionDuringSlowPlayWins(t *testing.T) {
	src := rockSource()
	src.tracks["Solo"] = []model.TrackView{{ID: 5, Title: "Only"}}
	src.tracks["Ambient"] = []model.TrackView{{ID: 9, Title: "Drift"}}
	gate := make(chan struct{})
	out := &gatedOutput{gates: map[int64]chan struct{}{5: gate}, started: make(chan int64, 1)}
	p := NewPlayer(src, out, &fakeReporter{})

	slow := make(chan error, 1)
	go func() { slow <- p.SelectGenre(context.Background(), "Solo") }()
	<-out.started

	fast := make(chan error, 1)
	go func() { fast <- p.SelectGenre(context.Background(), "Ambient") }()
	// the newer selection has taken over before the old Play returns
	for p.Genre() != "Ambient" {
		time.Sleep(time.Millisecond)
	}
	close(gate)

	if err := <-slow; !errors.Is(err, ErrStaleSelection) {
		t.Fatalf("slow SelectGenre() error = %v, want ErrStaleSelection", err)
	}
	if err := <-fast; err != nil {
		t.Fatalf("SelectGenre(Ambient) error = %v", err)
	}
	cur, ok := p.Current()
	if !ok || cur.ID != 9 || p.State() != Playing {
		t.Errorf("current = %+v, %v state %s", cur, ok, p.State())
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	if len(out.played) != 2 || out.played[0] != 5 || out.played[1] != 9 {
		t.Errorf("played = %v, want [5 9]", out.played)
	}
}

func TestPauseResumeTransitions(t *testing.T) {
	p := NewPlayer(rockSource(), &fakeOutput{}, &fakeReporter{})
	if err := p.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Pause() while idle = %v", err)
	}
	if err := p.Resume(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Resume() while idle = %v", err)
	}

	if err := p.SelectGenre(context.Background(), "Rock"); err != nil {
		t.Fatal(err)
	}
	if err := p.Resume(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Resume() while playing = %v", err)
	}
	if err := p.Pause(); err != nil || p.State() != Paused {
		t.Fatalf("Pause() = %v, state %s", err, p.State())
	}
	if err := p.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Pause() while paused = %v", err)
	}
	if err := p.Resume(); err != nil || p.State() != Playing {
		t.Fatalf("Resume() = %v, state %s", err, p.State())
	}
}

func TestTrackEndedReportsAndRepicks(t *testing.T) {
	src := &fakeSource{tracks: map[string][]model.TrackView{"Solo": {{ID: 5, Title: "Only"}}}}
	out := &fakeOutput{}
	rep := &fakeReporter{}
	p := NewPlayer(src, out, rep)

	if err := p.OnTrackEnded(context.Background(), 10); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("OnTrackEnded() while idle = %v", err)
	}
	if err := p.SelectGenre(context.Background(), "Solo"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := p.OnTrackEnded(context.Background(), 30); err != nil {
			t.Fatal(err)
		}
	}
	p.Wait()

	// the single track repeats
	if len(out.played) != 4 {
		t.Errorf("played = %v, want 4 plays of track 5", out.played)
	}
	if rep.plays[5] != 90 {
		t.Errorf("reported seconds = %d, want 90", rep.plays[5])
	}
	if p.State() != Playing {
		t.Errorf("state = %s", p.State())
	}
}

func TestReportFailuresDoNotAffectPlayback(t *testing.T) {
	rep := &fakeReporter{err: errors.New("server down")}
	p := NewPlayer(rockSource(), &fakeOutput{}, rep)
	if err := p.SelectGenre(context.Background(), "Rock"); err != nil {
		t.Fatal(err)
	}
	if err := p.OnTrackEnded(context.Background(), 12); err != nil {
		t.Fatalf("OnTrackEnded() error = %v", err)
	}
	if _, err := p.Clap(); err != nil {
		t.Fatalf("Clap() error = %v", err)
	}
	p.Wait()
	if p.State() != Playing {
		t.Errorf("state = %s", p.State())
	}
}

func TestClapOncePerTrackPerDay(t *testing.T) {
	now := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)
	src := &fakeSource{tracks: map[string][]model.TrackView{"Solo": {{ID: 5, Title: "Only"}}}}
	rep := &fakeReporter{}
	p := NewPlayer(src, &fakeOutput{}, rep, WithClock(func() time.Time { return now }))

	if _, err := p.Clap(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Clap() with nothing playing = %v", err)
	}
	if err := p.SelectGenre(context.Background(), "Solo"); err != nil {
		t.Fatal(err)
	}
	if sent, err := p.Clap(); !sent || err != nil {
		t.Fatalf("first Clap() = %v, %v", sent, err)
	}
	if sent, _ := p.Clap(); sent {
		t.Error("second Clap() on the same day was sent")
	}
	now = now.Add(2 * time.Hour)
	if sent, _ := p.Clap(); !sent {
		t.Error("Clap() on the next day was not sent")
	}
	p.Wait()
	if len(rep.claps) != 2 {
		t.Errorf("reported claps = %v", rep.claps)
	}
}

func TestClapKey(t *testing.T) {
	at := time.Date(2025, 12, 16, 1, 0, 0, 0, time.FixedZone("CET", 3600*2))
	if got := ClapKey(7, at); got != "clap:7:2025-12-15" {
		t.Errorf("ClapKey() = %q", got)
	}
}

func TestStateString(t *testing.T) {
	if Paused.String() != "paused" || State(42).String() != "State(42)" {
		t.Errorf("String() = %q, %q", Paused.String(), State(42).String())
	}
}
