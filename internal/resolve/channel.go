package resolve

import (
	"fmt"
	"strings"

	"github.com/conn-castle/modlayer/internal/github"
	"github.com/conn-castle/modlayer/internal/messages"
)

// Channel is a release stability channel.
type Channel string

// Release channels, most stable first.
const (
	ChannelRelease Channel = "release"
	ChannelBeta    Channel = "beta"
	ChannelAlpha   Channel = "alpha"
)

// ParseChannel validates a channel name.
func ParseChannel(raw string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(raw))); c {
	case ChannelRelease, ChannelBeta, ChannelAlpha:
		return c, nil
	default:
		return "", fmt.Errorf(messages.FilterUnknownChannelFmt, raw)
	}
}

func (c Channel) rank() int {
	switch c {
	case ChannelRelease:
		return 0
	case ChannelBeta:
		return 1
	default:
		return 2
	}
}

// Accepts reports whether a candidate on channel other passes a filter for c.
// A filter accepts its own channel and every more stable one.
func (c Channel) Accepts(other Channel) bool {
	return other.rank() <= c.rank()
}

// ChannelOf classifies a release by its tag and name, then by the
// prerelease flag.
func ChannelOf(r github.Release) Channel {
	text := strings.ToLower(r.Tag + " " + r.Name)
	switch {
	case strings.Contains(text, "alpha"):
		return ChannelAlpha
	case strings.Contains(text, "beta"), strings.Contains(text, "-rc"), strings.Contains(text, "preview"):
		return ChannelBeta
	case r.Prerelease:
		return ChannelBeta
	default:
		return ChannelRelease
	}
}
