// Package fakecall simulates an incoming phone call: ringing, an answered
// call with a scripted voice, and hang-up. Rendering is delegated to the
// Haptics and Speaker capabilities.
package fakecall

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type State string

const (
	StateIncoming State = "incoming"
	StateActive   State = "active"
	StateEnded    State = "ended"
)

type Intensity string

const (
	ImpactLight  Intensity = "light"
	ImpactMedium Intensity = "medium"
	ImpactHeavy  Intensity = "heavy"
)

type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyWarning NotificationKind = "warning"
	NotifyError   NotificationKind = "error"
)

// Haptics renders fire-and-forget vibration pulses.
type Haptics interface {
	Impact(intensity Intensity)
	Notify(kind NotificationKind)
}

// VoiceOptions tune the synthesized voice.
type VoiceOptions struct {
	Language string  `json:"language"`
	Pitch    float64 `json:"pitch"`
	Rate     float64 `json:"rate"`
	Volume   float64 `json:"volume"`
}

// Speaker renders text to speech. done is called once when the utterance
// finishes or is cancelled by Stop.
type Speaker interface {
	Speak(text string, opts VoiceOptions, done func())
	Stop()
}

const DefaultScript = "Hey, I'm almost there. I can see the building now. Just parking the car."

var DefaultVoice = VoiceOptions{Language: "en-US", Pitch: 1.0, Rate: 0.75, Volume: 1.0}

const (
	DefaultAnswerDelay = 500 * time.Millisecond
	tickInterval       = time.Second
)

var ErrInvalidTransition = errors.New("invalid fake call transition")

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "safecall_fake_call_sessions_active",
	Help: "Fake call sessions that have not ended yet",
})

type Config struct {
	Script      string
	Voice       VoiceOptions
	AnswerDelay time.Duration
	// OnChange, when set, receives a snapshot after every observable change.
	OnChange func(Snapshot)
}

// Snapshot is the observable state of a session.
type Snapshot struct {
	State    State `json:"state"`
	Duration int   `json:"duration"`
	Speaking bool  `json:"speaking"`
}

// Session is one fake call. It starts ringing on creation and must be ended
// through Decline, End or Close so its timers are released.
type Session struct {
	cfg     Config
	clock   Clock
	haptics Haptics
	speaker Speaker

	mu        sync.Mutex
	state     State
	duration  int
	speaking  bool
	utterance uint64

	ring    Stopper
	counter Stopper
	pending Stopper

	done chan struct{}
}

func NewSession(haptics Haptics, speaker Speaker, clock Clock, cfg Config) *Session {
	if cfg.Script == "" {
		cfg.Script = DefaultScript
	}
	if cfg.Voice == (VoiceOptions{}) {
		cfg.Voice = DefaultVoice
	}
	if cfg.AnswerDelay <= 0 {
		cfg.AnswerDelay = DefaultAnswerDelay
	}
	if clock == nil {
		clock = RealClock()
	}

	s := &Session{
		cfg:     cfg,
		clock:   clock,
		haptics: haptics,
		speaker: speaker,
		state:   StateIncoming,
		counter: nopStopper{},
		pending: nopStopper{},
		done:    make(chan struct{}),
	}
	s.ring = clock.Every(tickInterval, s.ringTick)
	activeSessions.Inc()
	return s
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{State: s.state, Duration: s.duration, Speaking: s.speaking}
}

// Done is closed once the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) emit(snap Snapshot) {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(snap)
	}
}

func (s *Session) ringTick() {
	s.mu.Lock()
	ringing := s.state == StateIncoming
	s.mu.Unlock()
	if ringing {
		s.haptics.Impact(ImpactHeavy)
	}
}

func (s *Session) durationTick() {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.duration++
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
}

// Accept answers the call. The counter starts at 0 and the script plays
// after the answer delay.
func (s *Session) Accept() error {
	s.mu.Lock()
	if s.state != StateIncoming {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: accept while %s", ErrInvalidTransition, state)
	}
	s.ring.Stop()
	s.state = StateActive
	s.duration = 0
	s.counter = s.clock.Every(tickInterval, s.durationTick)
	s.pending = s.clock.AfterFunc(s.cfg.AnswerDelay, s.playScript)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.haptics.Notify(NotifySuccess)
	s.emit(snap)
	return nil
}

// Decline rejects a ringing call.
func (s *Session) Decline() error {
	if !s.exit(StateIncoming) {
		return fmt.Errorf("%w: decline while %s", ErrInvalidTransition, s.Snapshot().State)
	}
	s.haptics.Notify(NotifyError)
	return nil
}

// End hangs up an answered call.
func (s *Session) End() error {
	if !s.exit(StateActive) {
		return fmt.Errorf("%w: end while %s", ErrInvalidTransition, s.Snapshot().State)
	}
	s.haptics.Impact(ImpactLight)
	return nil
}

// Close tears the session down from any state without feedback pulses.
func (s *Session) Close() {
	s.exit("")
}

// Replay plays the script again on an answered call.
func (s *Session) Replay() error {
	s.mu.Lock()
	if s.state != StateActive {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: replay while %s", ErrInvalidTransition, state)
	}
	s.pending.Stop()
	s.mu.Unlock()

	s.playScript()
	return nil
}

// exit ends the session if it is in from, or in any live state when from is
// empty. It reports whether this call performed the exit.
func (s *Session) exit(from State) bool {
	s.mu.Lock()
	if s.state == StateEnded || (from != "" && s.state != from) {
		s.mu.Unlock()
		return false
	}
	s.ring.Stop()
	s.counter.Stop()
	s.pending.Stop()
	s.state = StateEnded
	s.speaking = false
	s.utterance++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.speaker.Stop()
	close(s.done)
	activeSessions.Dec()
	s.emit(snap)
	return true
}

// playScript halts any utterance in flight before starting the script.
func (s *Session) playScript() {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.utterance++
	id := s.utterance
	s.speaking = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.speaker.Stop()
	// exit may have run while the speaker was being stopped.
	if !s.current(id) {
		return
	}
	s.emit(snap)
	s.speaker.Speak(s.cfg.Script, s.cfg.Voice, func() { s.finishUtterance(id) })

	// An exit that raced with Speak stopped the speaker before the script
	// started, so stop it again.
	if s.Snapshot().State == StateEnded {
		s.speaker.Stop()
	}
}

// current reports whether utterance id may still play. exit and every new
// utterance invalidate older ids.
func (s *Session) current(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateActive && s.utterance == id
}

func (s *Session) finishUtterance(id uint64) {
	s.mu.Lock()
	if id != s.utterance || !s.speaking {
		s.mu.Unlock()
		return
	}
	s.speaking = false
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
}
