// Package playback drives a Player through the life of one piece of
// content: variant fallback for live channels, pause/resume, buffering,
// watch-history progress and episode auto-advance.
package playback

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"streamvault/config"
	"streamvault/internal/database"
	"streamvault/internal/events"
	"streamvault/models"
)

// State is the controller's lifecycle state.
type State string

const (
	StateStopped   State = "stopped"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateBuffering State = "buffering"
	StateFailed    State = "failed"
)

// loadedItem is the content currently driving the player.
type loadedItem struct {
	mediaType models.MediaType
	mediaID   int64
	profileID int64

	// variant fallback for channels
	variants     []models.ChannelVariant
	variantIndex int

	// next episode for auto-advance, nil for anything else
	episode *models.Episode

	preBufferFired bool
}

// Controller owns the playback state machine.
type Controller struct {
	mu       sync.Mutex
	state    State
	reason   string
	item     *loadedItem
	player   Player
	catalog  *database.CatalogRepository
	channels *database.ChannelRepository
	history  *database.HistoryRepository
	bus      *events.Bus
	cfg      config.PlaybackSettings

	// onPreBuffer is invoked once per loaded item when remaining time
	// falls under the threshold.
	onPreBuffer func(next *models.Episode)

	stopProgress chan struct{}
}

func NewController(db *database.DB, player Player, bus *events.Bus, cfg config.PlaybackSettings) *Controller {
	return &Controller{
		state:    StateStopped,
		player:   player,
		catalog:  database.NewCatalogRepository(db.Connection()),
		channels: database.NewChannelRepository(db.Connection()),
		history:  database.NewHistoryRepository(db.Connection()),
		bus:      bus,
		cfg:      cfg,
	}
}

// SetPreBufferDelegate registers the callback fired when the loaded item
// nears its end. For episodes the callback receives the next episode in
// the season, if any.
func (c *Controller) SetPreBufferDelegate(fn func(next *models.Episode)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPreBuffer = fn
}

// State returns the current state and, for failed, the reason.
func (c *Controller) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.reason
}

// Load resolves the content's stream URL and starts playing it. For
// channels the variant list becomes the fallback chain, starting at
// variantIndex.
func (c *Controller) Load(ctx context.Context, mediaType models.MediaType, mediaID, profileID int64, variantIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopProgressLocked()

	item := &loadedItem{mediaType: mediaType, mediaID: mediaID, profileID: profileID}
	var streamURL string

	switch mediaType {
	case models.MediaTypeMovie:
		movie, err := c.catalog.GetMovieByID(ctx, mediaID)
		if err != nil {
			return err
		}
		if movie == nil {
			return fmt.Errorf("movie %d not found", mediaID)
		}
		streamURL = movie.StreamURL

	case models.MediaTypeEpisode:
		episode, err := c.catalog.GetEpisodeByID(ctx, mediaID)
		if err != nil {
			return err
		}
		if episode == nil {
			return fmt.Errorf("episode %d not found", mediaID)
		}
		item.episode = episode
		streamURL = episode.StreamURL

	case models.MediaTypeChannel:
		variants, err := c.channels.VariantsForChannel(ctx, mediaID)
		if err != nil {
			return err
		}
		if len(variants) == 0 {
			return fmt.Errorf("channel %d has no stream variants", mediaID)
		}
		if variantIndex < 0 || variantIndex >= len(variants) {
			variantIndex = 0
		}
		item.variants = variants
		item.variantIndex = variantIndex
		streamURL = variants[variantIndex].StreamURL

	default:
		return fmt.Errorf("cannot play media type %q", mediaType)
	}

	c.item = item
	if err := c.playLocked(ctx, streamURL); err != nil {
		return err
	}
	c.startProgressLocked()
	return nil
}

// playLocked asks the player to start streamURL. For channels a failed
// start probes down the variant chain before giving up.
func (c *Controller) playLocked(ctx context.Context, streamURL string) error {
	err := c.player.Play(ctx, streamURL)
	for err != nil {
		next, ok := c.nextVariantLocked()
		if !ok {
			c.setStateLocked(StateFailed, err.Error())
			return fmt.Errorf("playback failed: %w", err)
		}
		log.Printf("[playback] variant %q failed, trying %q: %v",
			streamURL, next.StreamURL, err)
		streamURL = next.StreamURL
		err = c.player.Play(ctx, streamURL)
	}
	c.setStateLocked(StatePlaying, "")
	return nil
}

// nextVariantLocked advances to the next fallback variant, if any.
func (c *Controller) nextVariantLocked() (*models.ChannelVariant, bool) {
	if c.item == nil || len(c.item.variants) == 0 {
		return nil, false
	}
	if c.item.variantIndex+1 >= len(c.item.variants) {
		return nil, false
	}
	c.item.variantIndex++
	return &c.item.variants[c.item.variantIndex], true
}

// Pause pauses playback. Pausing anything but an active stream is an error.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying && c.state != StateBuffering {
		return fmt.Errorf("cannot pause while %s", c.state)
	}
	if err := c.player.Pause(); err != nil {
		return err
	}
	c.setStateLocked(StatePaused, "")
	return nil
}

// Resume continues paused playback.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return fmt.Errorf("cannot resume while %s", c.state)
	}
	if err := c.player.Resume(); err != nil {
		return err
	}
	c.setStateLocked(StatePlaying, "")
	return nil
}

// Stop ends playback and unloads the item.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopProgressLocked()
	if err := c.player.Stop(); err != nil {
		return err
	}
	c.item = nil
	c.setStateLocked(StateStopped, "")
	return nil
}

// ReportRate feeds the player's render rate into the state machine: a
// stalled clock while playing means buffering, a moving clock while
// buffering means playback recovered.
func (c *Controller) ReportRate(rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state == StatePlaying && rate == 0:
		c.setStateLocked(StateBuffering, "")
	case c.state == StateBuffering && rate > 0:
		c.setStateLocked(StatePlaying, "")
	}
}

// ReportStall signals that the current stream died mid-play. Channels
// fall back to the next variant; everything else fails.
func (c *Controller) ReportStall(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.item == nil {
		return nil
	}
	next, ok := c.nextVariantLocked()
	if !ok {
		c.setStateLocked(StateFailed, "stream stalled")
		return fmt.Errorf("playback failed: no more variants")
	}
	log.Printf("[playback] stream stalled, falling back to %q", next.Name)
	return c.playLocked(ctx, next.StreamURL)
}

// ReportEnded signals normal end of stream. Episodes advance to the next
// episode number in the same season; the last episode, and everything
// else, stops.
func (c *Controller) ReportEnded(ctx context.Context) error {
	c.mu.Lock()
	item := c.item
	c.mu.Unlock()

	if item == nil {
		return nil
	}

	// The item finished: record full progress.
	c.recordProgress(ctx, item, 1.0)

	if item.mediaType == models.MediaTypeEpisode {
		next, err := c.catalog.NextEpisode(ctx, item.mediaID)
		if err != nil {
			return err
		}
		if next != nil {
			log.Printf("[playback] advancing to episode %d (%s)", next.EpisodeNumber, next.Title)
			return c.Load(ctx, models.MediaTypeEpisode, next.ID, item.profileID, 0)
		}
	}
	return c.Stop()
}

func (c *Controller) setStateLocked(state State, reason string) {
	c.state = state
	c.reason = reason
	payload := events.PlaybackState{State: string(state), Reason: reason}
	if c.item != nil {
		payload.MediaType = string(c.item.mediaType)
		payload.MediaID = c.item.mediaID
	}
	c.bus.Publish(events.TopicPlaybackState, payload)
}

// startProgressLocked runs the progress observer for the loaded item.
func (c *Controller) startProgressLocked() {
	interval := time.Duration(c.cfg.ProgressIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	stop := make(chan struct{})
	c.stopProgress = stop
	item := c.item

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.observeProgress(item)
			}
		}
	}()
}

func (c *Controller) stopProgressLocked() {
	if c.stopProgress != nil {
		close(c.stopProgress)
		c.stopProgress = nil
	}
}

// observeProgress samples the player clock, persists watch history and
// fires the one-shot pre-buffer signal near the end of the item.
func (c *Controller) observeProgress(item *loadedItem) {
	c.mu.Lock()
	if c.item != item || (c.state != StatePlaying && c.state != StatePaused) {
		c.mu.Unlock()
		return
	}
	position := c.player.Position()
	duration := c.player.Duration()
	preBuffer := c.onPreBuffer
	shouldPreBuffer := false
	if c.cfg.PreBufferEnabled && preBuffer != nil && !item.preBufferFired && duration > 0 {
		threshold := time.Duration(c.cfg.PreBufferThresholdSeconds) * time.Second
		if duration-position < threshold {
			item.preBufferFired = true
			shouldPreBuffer = true
		}
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if duration > 0 {
		c.recordProgress(ctx, item, float64(position)/float64(duration))
	}

	if shouldPreBuffer {
		var next *models.Episode
		if item.mediaType == models.MediaTypeEpisode {
			n, err := c.catalog.NextEpisode(ctx, item.mediaID)
			if err != nil {
				log.Printf("[playback] next episode lookup failed: %v", err)
			} else {
				next = n
			}
		}
		// Movies and season-final episodes have nothing to pre-buffer.
		if next != nil {
			preBuffer(next)
		}
	}
}

func (c *Controller) recordProgress(ctx context.Context, item *loadedItem, progress float64) {
	if item.profileID == 0 || item.mediaType == models.MediaTypeChannel {
		return
	}
	if progress > 1 {
		progress = 1
	}
	err := c.history.Upsert(ctx, models.WatchHistory{
		ProfileID:     item.profileID,
		MediaType:     item.mediaType,
		MediaID:       item.mediaID,
		Progress:      progress,
		LastWatchedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[playback] failed to record progress: %v", err)
	}
}
