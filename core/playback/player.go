// Package playback drives a single listener's radio session: pick a track of the chosen
// genre, play it, report engagement, pick again when it ends.
package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pitaradio/core/selection"
	"pitaradio/logger"
	"pitaradio/model"
)

var (
	// ErrStaleSelection is returned by SelectGenre when a newer selection replaced it while
	// its track list was loading.
	ErrStaleSelection = errors.New("selection superseded by a newer one")
	// ErrInvalidTransition is returned for an operation the current state does not allow.
	ErrInvalidTransition = errors.New("invalid playback transition")
	// ErrNoGenre is returned by SelectGenre for a blank genre.
	ErrNoGenre = errors.New("no genre selected")
)

// State of a Player.
type State int

const (
	Idle State = iota
	Loading
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TrackSource lists the tracks of a genre together with their clap counts.
type TrackSource interface {
	Tracks(ctx context.Context, genre string) ([]model.TrackView, error)
}

// Output renders audio. Play replaces whatever was playing.
type Output interface {
	Play(ctx context.Context, track model.TrackView) error
	Pause() error
	Resume() error
}

// StatsReporter sends engagement events to the server.
type StatsReporter interface {
	ReportClap(ctx context.Context, trackID int64) error
	ReportPlay(ctx context.Context, trackID int64, seconds int64) error
}

// Transition is passed to an observer after every state change.
type Transition struct {
	From, To State
	Track    *model.TrackView
}

// Option configures a Player.
type Option func(*Player)

// WithPicker sets the weighted picker, e.g. a seeded one in tests.
func WithPicker(p *selection.Picker) Option {
	return func(pl *Player) { pl.picker = p }
}

// WithClock overrides time.Now for the daily clap key.
func WithClock(now func() time.Time) Option {
	return func(pl *Player) { pl.now = now }
}

// WithObserver registers fn to be called, under the player lock, on each transition.
func WithObserver(fn func(Transition)) Option {
	return func(pl *Player) { pl.observe = fn }
}

// WithReportTimeout bounds each background stats report.
func WithReportTimeout(d time.Duration) Option {
	return func(pl *Player) { pl.reportTimeout = d }
}

// Player is the playback state machine. All methods are safe for concurrent use; nothing
// happens on its own, every transition is triggered by a call.
type Player struct {
	source TrackSource
	out    Output
	stats  StatsReporter
	picker *selection.Picker

	now           func() time.Time
	observe       func(Transition)
	reportTimeout time.Duration

	// outMu serialises calls into out and is taken before mu. mu is never held while
	// out runs, so State and Current stay responsive during a slow Play.
	outMu sync.Mutex

	mu         sync.Mutex
	state      State
	generation uint64
	genre      string
	tracks     []model.TrackView
	current    *model.TrackView
	clapped    map[string]struct{}

	reports sync.WaitGroup
}

func NewPlayer(source TrackSource, out Output, stats StatsReporter, opts ...Option) *Player {
	p := &Player{
		source:        source,
		out:           out,
		stats:         stats,
		now:           time.Now,
		reportTimeout: 10 * time.Second,
		clapped:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.picker == nil {
		p.picker = selection.NewPicker(nil)
	}
	return p
}

// State returns the current state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Current returns the track being played or paused.
func (p *Player) Current() (model.TrackView, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return model.TrackView{}, false
	}
	return *p.current, true
}

// Genre returns the most recently selected genre.
func (p *Player) Genre() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.genre
}

// SelectGenre loads the tracks of genre and starts a weighted pick. It may be called in
// any state. If another SelectGenre starts before this one's track begins, this one returns
// ErrStaleSelection and leaves the newer selection alone. An empty genre ends in Idle.
// A blank genre is rejected with ErrNoGenre and changes nothing.
func (p *Player) SelectGenre(ctx context.Context, genre string) error {
	if strings.TrimSpace(genre) == "" {
		return ErrNoGenre
	}

	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.genre = genre
	p.tracks = nil
	p.current = nil
	p.setState(Loading)
	p.mu.Unlock()

	tracks, err := p.source.Tracks(ctx, genre)

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		logger.Debug("Discarding stale track list", logger.String("genre", genre))
		return ErrStaleSelection
	}
	if err != nil {
		p.setState(Idle)
		p.mu.Unlock()
		return fmt.Errorf("loading tracks of %q: %w", genre, err)
	}
	p.tracks = tracks
	p.mu.Unlock()

	return p.playNext(ctx, gen)
}

// Pause moves Playing to Paused.
func (p *Player) Pause() error {
	return p.toggle(Playing, Paused, "pause", p.out.Pause)
}

// Resume moves Paused back to Playing.
func (p *Player) Resume() error {
	return p.toggle(Paused, Playing, "resume", p.out.Resume)
}

func (p *Player) toggle(from, to State, op string, call func() error) error {
	p.outMu.Lock()
	defer p.outMu.Unlock()

	p.mu.Lock()
	if p.state != from {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, state)
	}
	gen := p.generation
	p.mu.Unlock()

	if err := call(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation || p.state != from {
		return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, p.state)
	}
	p.setState(to)
	return nil
}

// OnTrackEnded reports the finished play and picks the next track from the same list.
// The same track may come up again. The player is Loading until the next track starts.
func (p *Player) OnTrackEnded(ctx context.Context, listenedSeconds int64) error {
	p.mu.Lock()
	if p.state != Playing && p.state != Paused {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("%w: track ended while %s", ErrInvalidTransition, state)
	}
	if p.current != nil {
		id := p.current.ID
		p.report("play", id, func(ctx context.Context) error {
			return p.stats.ReportPlay(ctx, id, listenedSeconds)
		})
	}
	gen := p.generation
	p.current = nil
	p.setState(Loading)
	p.mu.Unlock()

	return p.playNext(ctx, gen)
}

// Clap sends one clap for the current track, at most once per track per calendar day.
// sent is false when today's clap was already sent.
func (p *Player) Clap() (sent bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return false, fmt.Errorf("%w: clap while %s", ErrInvalidTransition, p.state)
	}
	id := p.current.ID
	key := ClapKey(id, p.now())
	if _, done := p.clapped[key]; done {
		return false, nil
	}
	p.clapped[key] = struct{}{}
	p.report("clap", id, func(ctx context.Context) error {
		return p.stats.ReportClap(ctx, id)
	})
	return true, nil
}

// Wait blocks until background stats reports have finished.
func (p *Player) Wait() {
	p.reports.Wait()
}

// ClapKey identifies one track on one UTC day.
func ClapKey(trackID int64, at time.Time) string {
	return fmt.Sprintf("clap:%d:%s", trackID, at.UTC().Format("2006-01-02"))
}

// playNext picks from the loaded list and starts it, unless selection gen was replaced.
// It must be called without p.mu held.
func (p *Player) playNext(ctx context.Context, gen uint64) error {
	p.outMu.Lock()
	defer p.outMu.Unlock()

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return ErrStaleSelection
	}
	track, ok := selection.PickFrom(p.picker, p.tracks, func(t model.TrackView) int64 { return t.ClapCount })
	if !ok {
		p.current = nil
		p.setState(Idle)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	err := p.out.Play(ctx, track)

	p.mu.Lock()
	defer p.mu.Unlock()
	// a newer selection waits on outMu and will replace this track
	if gen != p.generation {
		return ErrStaleSelection
	}
	if err != nil {
		p.current = nil
		p.setState(Idle)
		return fmt.Errorf("starting track %d: %w", track.ID, err)
	}
	p.current = &track
	p.setState(Playing)
	return nil
}

func (p *Player) setState(to State) {
	from := p.state
	p.state = to
	if p.observe != nil {
		p.observe(Transition{From: from, To: to, Track: p.current})
	}
}

// report runs fn in the background; failures are only logged.
func (p *Player) report(kind string, trackID int64, fn func(context.Context) error) {
	if p.stats == nil {
		return
	}
	p.reports.Add(1)
	go func() {
		defer p.reports.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.reportTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Warn("Failed to report engagement",
				logger.String("kind", kind),
				logger.Int64("trackId", trackID),
				logger.ErrorField(err))
		}
	}()
}
