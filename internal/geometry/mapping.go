package geometry

import (
	"fmt"
	"sort"
)

// Channel is a host mesh stream an engine attribute can feed.
type Channel string

const (
	ChannelPosition Channel = "position"
	ChannelNormal   Channel = "normal"
	ChannelTexCoord Channel = "texcoord"
	ChannelColor    Channel = "color"
	ChannelAlpha    Channel = "alpha"
	ChannelMaterial Channel = "material"
)

// ParseChannel maps a channel name to a Channel.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(s); c {
	case ChannelPosition, ChannelNormal, ChannelTexCoord, ChannelColor, ChannelAlpha, ChannelMaterial:
		return c, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// Mapping maps engine attribute names to host channels.
type Mapping map[string]Channel

// DefaultMapping returns the engine's naming conventions.
func DefaultMapping() Mapping {
	return Mapping{
		"P":                 ChannelPosition,
		"N":                 ChannelNormal,
		"uv":                ChannelTexCoord,
		"Cd":                ChannelColor,
		"Alpha":             ChannelAlpha,
		"shop_materialpath": ChannelMaterial,
	}
}

// With returns a copy of m with name mapped to ch.
func (m Mapping) With(name string, ch Channel) Mapping {
	out := make(Mapping, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[name] = ch
	return out
}

// namesFor returns the attribute names mapped to ch in sorted order.
func (m Mapping) namesFor(ch Channel) []string {
	var names []string
	for name, c := range m {
		if c == ch {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
