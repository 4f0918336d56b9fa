// Package events carries in-process notifications: import progress from the
// ingest workers and state transitions from the playback controller.
package events

import "sync"

// Event is one notification on a topic.
type Event struct {
	Topic   string
	Payload any
}

// Topics published by the services.
const (
	TopicImportProgress = "import.progress"
	TopicImportDone     = "import.done"
	TopicPlaybackState  = "playback.state"
	TopicDownloadState  = "download.state"
)

const subscriberBuffer = 64

// Bus is a topic-based fan-out. Publish never blocks: a subscriber that
// falls behind its buffer misses events rather than stalling the producer.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]chan Event
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]chan Event)}
}

// Subscribe returns a channel of events for topic and a cancel function.
// Cancel must be called to release the subscription; the channel is closed
// by it.
func (b *Bus) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, c := range subs {
			if c == ch {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Publish delivers payload to every current subscriber of topic.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- Event{Topic: topic, Payload: payload}:
		default:
		}
	}
}

// ImportProgress reports how far a source import has come.
type ImportProgress struct {
	SourceID int64  `json:"sourceId"`
	Stage    string `json:"stage"`
	Movies   int    `json:"movies"`
	Channels int    `json:"channels"`
	Variants int    `json:"variants"`
}

// PlaybackState reports a playback controller transition.
type PlaybackState struct {
	State     string `json:"state"`
	MediaType string `json:"mediaType"`
	MediaID   int64  `json:"mediaId"`
	Reason    string `json:"reason,omitempty"`
}

// DownloadState reports a download lifecycle transition.
type DownloadState struct {
	DownloadID int64  `json:"downloadId"`
	Status     string `json:"status"`
	BytesDone  int64  `json:"bytesDone"`
	TotalBytes int64  `json:"totalBytes,omitempty"`
	Error      string `json:"error,omitempty"`
}
