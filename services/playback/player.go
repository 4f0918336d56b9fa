package playback

import (
	"context"
	"sync"
	"time"
)

// Player is the rendering backend driven by the controller. Implementations
// wrap whatever actually decodes the stream; the controller only cares
// about transport control and clock position.
type Player interface {
	// Play starts rendering url, replacing whatever was playing.
	Play(ctx context.Context, url string) error
	Pause() error
	Resume() error
	Stop() error
	// Position returns the current playback clock.
	Position() time.Duration
	// Duration returns the total runtime, or zero when unknown (live).
	Duration() time.Duration
}

// RemotePlayer is the headless backend used when rendering happens on a
// client device. Transport calls always succeed and the clock is fed by
// the client through UpdateClock.
type RemotePlayer struct {
	mu       sync.Mutex
	url      string
	position time.Duration
	duration time.Duration
}

func NewRemotePlayer() *RemotePlayer {
	return &RemotePlayer{}
}

func (p *RemotePlayer) Play(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.position = 0
	p.duration = 0
	return nil
}

func (p *RemotePlayer) Pause() error  { return nil }
func (p *RemotePlayer) Resume() error { return nil }

func (p *RemotePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = ""
	p.position = 0
	p.duration = 0
	return nil
}

func (p *RemotePlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *RemotePlayer) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// StreamURL returns the URL the client should render.
func (p *RemotePlayer) StreamURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// UpdateClock records the client-reported position and duration so the
// progress observer can persist and pre-buffer from them.
func (p *RemotePlayer) UpdateClock(position, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = position
	p.duration = duration
}
