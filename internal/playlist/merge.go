package playlist

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Merge writes the two published playlists from a base channel list and a set
// of live events. The combined playlist is the base copied line for line,
// followed by the events numbered after the highest base channel. live holds
// only the events numbered from 1 and points players at epgURL. Events are
// ordered by name, byte-wise.
func Merge(base []byte, events *Playlist, epgURL string, combined io.Writer) (*Playlist, error) {
	bp, err := Parse(bytes.NewReader(base))
	if err != nil {
		return nil, fmt.Errorf("parse base: %w", err)
	}
	offset := bp.MaxChannelNumber()

	evs := make([]Entry, len(events.Entries))
	for i, e := range events.Entries {
		evs[i] = e.Clone()
	}
	sort.SliceStable(evs, func(i, j int) bool {
		return evs[i].Name < evs[j].Name
	})

	live := &Playlist{}
	if epgURL != "" {
		live.Header = Attrs{{Key: AttrEPG, Value: epgURL}}
	}
	appended := make([]Entry, 0, len(evs))
	for i, e := range evs {
		c := e.Clone()
		c.Attrs = c.Attrs.Set(AttrChannelNumber, strconv.Itoa(offset+i+1))
		appended = append(appended, c)

		l := e.Clone()
		l.Attrs = l.Attrs.Set(AttrChannelNumber, strconv.Itoa(i+1))
		live.Entries = append(live.Entries, l)
	}

	bw := bufio.NewWriter(combined)
	for _, line := range baseLines(base) {
		bw.WriteString(line)
		bw.WriteByte('\n')
	}
	writeEntries(bw, appended)
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("write combined: %w", err)
	}
	return live, nil
}

// baseLines splits base into lines without terminators. Trailing blank lines
// are dropped so appended entries keep a single separating blank line.
func baseLines(base []byte) []string {
	s := strings.ReplaceAll(string(base), "\r\n", "\n")
	s = strings.TrimRight(s, "\r\n")
	if s == "" {
		return []string{tagHeader}
	}
	return strings.Split(s, "\n")
}
