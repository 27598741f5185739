package channel

import (
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
)

// Registry is a process-local immutable mapping from channel tag to delivery
// channel, populated once at startup.
type Registry struct {
	channels map[string]Channel
}

func NewRegistry(channels ...Channel) *Registry {
	m := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		m[ch.Tag()] = ch
	}
	return &Registry{channels: m}
}

// Resolve returns the channel for the tag, or ChannelUnavailable.
func (r *Registry) Resolve(tag string) (Channel, error) {
	ch, ok := r.channels[tag]
	if !ok {
		return nil, errors.ChannelUnavailable(tag)
	}
	return ch, nil
}

// Tags lists the registered channel tags.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.channels))
	for tag := range r.channels {
		tags = append(tags, tag)
	}
	return tags
}
