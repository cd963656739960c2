// Package playlist reads and writes extended M3U (M3U8) channel playlists.
package playlist

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	AttrChannelNumber = "tvg-chno"
	AttrID            = "tvg-id"
	AttrName          = "tvg-name"
	AttrLogo          = "tvg-logo"
	AttrGroup         = "group-title"
	AttrEPG           = "url-tvg"

	OptReferrer  = "http-referrer"
	OptOrigin    = "http-origin"
	OptUserAgent = "http-user-agent"
)

// Attr is a key/value pair; slices of Attr keep the source order.
type Attr struct {
	Key   string
	Value string
}

type Attrs []Attr

func (a Attrs) Get(key string) string {
	for _, kv := range a {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// Set replaces the value of key in place or appends it.
func (a Attrs) Set(key, value string) Attrs {
	for i := range a {
		if a[i].Key == key {
			a[i].Value = value
			return a
		}
	}
	return append(a, Attr{Key: key, Value: value})
}

func (a Attrs) clone() Attrs {
	if a == nil {
		return nil
	}
	out := make(Attrs, len(a))
	copy(out, a)
	return out
}

type Entry struct {
	Name     string
	Duration string
	Attrs    Attrs
	VLCOpts  Attrs
	URL      string
}

func (e Entry) Clone() Entry {
	e.Attrs = e.Attrs.clone()
	e.VLCOpts = e.VLCOpts.clone()
	return e
}

// ChannelNumber returns tvg-chno, or 0 when absent or not numeric.
func (e Entry) ChannelNumber() int {
	n, err := strconv.Atoi(strings.TrimSpace(e.Attrs.Get(AttrChannelNumber)))
	if err != nil {
		return 0
	}
	return n
}

func (e Entry) Group() string { return e.Attrs.Get(AttrGroup) }

// Headers returns the request headers a player sends for this entry.
func (e Entry) Headers() http.Header {
	h := http.Header{}
	if v := e.VLCOpts.Get(OptReferrer); v != "" {
		h.Set("Referer", v)
	}
	if v := e.VLCOpts.Get(OptOrigin); v != "" {
		h.Set("Origin", v)
	}
	if v := e.VLCOpts.Get(OptUserAgent); v != "" {
		h.Set("User-Agent", v)
	}
	return h
}

type Playlist struct {
	Header  Attrs
	Entries []Entry
}

func (p *Playlist) MaxChannelNumber() int {
	highest := 0
	for _, e := range p.Entries {
		if n := e.ChannelNumber(); n > highest {
			highest = n
		}
	}
	return highest
}
