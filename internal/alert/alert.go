package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CueKind names one of the audio cues the agent can emit.
type CueKind string

const (
	CueNewJob  CueKind = "new_job"
	CueVoice   CueKind = "voice"
	CueMessage CueKind = "message"
	CueSuccess CueKind = "success"
)

const (
	// DefaultBannerTTL is how long a banner stays visible before it clears
	// itself, independent of further state changes.
	DefaultBannerTTL = 6 * time.Second

	// RecruitRepeat is how many times the new-job cue replays.
	RecruitRepeat = 3

	defaultRepeatGap = 1500 * time.Millisecond
)

// MessagePattern is the vibration pattern used for inbound messages.
var MessagePattern = []time.Duration{
	200 * time.Millisecond,
	100 * time.Millisecond,
	200 * time.Millisecond,
}

// Sound plays short audio cues. Implementations must tolerate Stop without a
// prior Play.
type Sound interface {
	Play(kind CueKind) error
	Stop()
}

// Speech converts text to audible speech.
type Speech interface {
	Say(ctx context.Context, text string) error
	Stop()
}

// Vibrator fires a haptic pattern.
type Vibrator interface {
	Vibrate(pattern []time.Duration)
}

// NoopSound, NoopSpeech and NoopVibrator satisfy the capability interfaces on
// platforms without the corresponding hardware.
type (
	NoopSound    struct{}
	NoopSpeech   struct{}
	NoopVibrator struct{}
)

func (NoopSound) Play(CueKind) error                 { return nil }
func (NoopSound) Stop()                              {}
func (NoopSpeech) Say(context.Context, string) error { return nil }
func (NoopSpeech) Stop()                             {}
func (NoopVibrator) Vibrate([]time.Duration)         {}

// Config wires a Coordinator.
type Config struct {
	CourierID string
	Sound     Sound
	Speech    Speech
	Vibrator  Vibrator
	Logger    *slog.Logger
	BannerTTL time.Duration
	RepeatGap time.Duration

	// NewJobCue selects the recruitment cue, CueNewJob (bell) or CueVoice.
	// Empty means CueNewJob.
	NewJobCue CueKind
}

// Coordinator centralizes the agent's audio, speech, vibration and banner
// cues. At most one cue plays at a time; starting a new one always stops the
// previous one first.
type Coordinator struct {
	courierID string
	sound     Sound
	speech    Speech
	vibrator  Vibrator
	logger    *slog.Logger
	bannerTTL time.Duration
	repeatGap time.Duration
	newJobCue CueKind

	mu          sync.Mutex
	cancel      context.CancelFunc
	banner      string
	bannerTimer *time.Timer
	unread      int
}

func NewCoordinator(cfg Config) *Coordinator {
	ttl := cfg.BannerTTL
	if ttl <= 0 {
		ttl = DefaultBannerTTL
	}
	gap := cfg.RepeatGap
	if gap <= 0 {
		gap = defaultRepeatGap
	}

	sound := cfg.Sound
	if sound == nil {
		sound = NoopSound{}
	}
	speech := cfg.Speech
	if speech == nil {
		speech = NoopSpeech{}
	}
	vibrator := cfg.Vibrator
	if vibrator == nil {
		vibrator = NoopVibrator{}
	}
	newJobCue := cfg.NewJobCue
	if newJobCue == "" {
		newJobCue = CueNewJob
	}

	return &Coordinator{
		courierID: cfg.CourierID,
		sound:     sound,
		speech:    speech,
		vibrator:  vibrator,
		logger:    cfg.Logger,
		bannerTTL: ttl,
		repeatGap: gap,
		newJobCue: newJobCue,
	}
}

// Play starts a cue, repeating it the given number of times with a short gap.
// Any cue already playing is stopped first.
func (c *Coordinator) Play(kind CueKind, repeat int) {
	if repeat < 1 {
		repeat = 1
	}

	c.mu.Lock()
	c.stopLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go c.repeatCue(ctx, kind, repeat)
}

func (c *Coordinator) repeatCue(ctx context.Context, kind CueKind, repeat int) {
	for i := 0; i < repeat; i++ {
		if err := c.sound.Play(kind); err != nil {
			c.logger.Warn("Audio cue failed",
				slog.String("cue", string(kind)),
				slog.Any("error", err),
			)
			return
		}

		if i == repeat-1 {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.repeatGap):
		}
	}
}

// Say speaks the text, stopping any cue in progress first.
func (c *Coordinator) Say(ctx context.Context, text string) {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()

	if err := c.speech.Say(ctx, text); err != nil {
		c.logger.Warn("Speech cue failed", slog.Any("error", err))
	}
}

// Stop silences any playing cue.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// stopLocked cancels the repeat loop and silences both outputs. Caller holds
// c.mu.
func (c *Coordinator) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.sound.Stop()
	c.speech.Stop()
}

// ShowBanner displays a message that clears itself after the banner TTL.
// A new banner restarts the clock.
func (c *Coordinator) ShowBanner(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.banner = msg
	if c.bannerTimer != nil {
		c.bannerTimer.Stop()
	}
	c.bannerTimer = time.AfterFunc(c.bannerTTL, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.banner == msg {
			c.banner = ""
		}
	})
}

// Banner returns the currently displayed banner, or "".
func (c *Coordinator) Banner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.banner
}

// NotifyNewJobs fires the recruitment cue set: banner, repeated audio, and
// vibration. Callers decide eligibility; this method is unconditional.
func (c *Coordinator) NotifyNewJobs(count int) {
	c.ShowBanner(fmt.Sprintf("%d delivery jobs available", count))
	c.Play(c.newJobCue, RecruitRepeat)
	c.vibrator.Vibrate(MessagePattern)
}

// NotifyMessage handles one inbound chat message. Only messages authored by
// someone other than this courier count as unread or make noise.
func (c *Coordinator) NotifyMessage(authorID string) {
	if authorID == c.courierID {
		return
	}

	c.mu.Lock()
	c.unread++
	c.mu.Unlock()

	c.Play(CueMessage, 1)
	c.vibrator.Vibrate(MessagePattern)
}

// Unread returns the inbound unread counter.
func (c *Coordinator) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// ClearUnread resets the counter, typically when the chat opens.
func (c *Coordinator) ClearUnread() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unread = 0
}

// Close releases the coordinator's timers and silences playback.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	if c.bannerTimer != nil {
		c.bannerTimer.Stop()
		c.bannerTimer = nil
	}
	c.banner = ""
}
