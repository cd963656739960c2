package playlist

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const (
	tagHeader = "#EXTM3U"
	tagInfo   = "#EXTINF:"
	tagVLCOpt = "#EXTVLCOPT:"

	maxLine = 1 << 20
)

// Parse reads a playlist. Malformed lines are skipped; only read errors fail.
func Parse(r io.Reader) (*Playlist, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	p := &Playlist{}
	var (
		pending *Entry
		first   = true
	)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
		case strings.HasPrefix(line, tagHeader):
			p.Header, _ = parseAttrs(strings.TrimPrefix(line, tagHeader))
		case strings.HasPrefix(line, tagInfo):
			e := parseInfo(strings.TrimPrefix(line, tagInfo))
			pending = &e
		case strings.HasPrefix(line, tagVLCOpt):
			if pending == nil {
				continue
			}
			k, v, ok := strings.Cut(strings.TrimPrefix(line, tagVLCOpt), "=")
			if ok {
				pending.VLCOpts = append(pending.VLCOpts, Attr{Key: strings.TrimSpace(k), Value: strings.TrimSpace(v)})
			}
		case strings.HasPrefix(line, "#"):
		default:
			if pending == nil {
				continue
			}
			pending.URL = line
			p.Entries = append(p.Entries, *pending)
			pending = nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan playlist: %w", err)
	}
	return p, nil
}

// parseInfo parses `-1 key="v" key2=v2,Display Name`.
func parseInfo(s string) Entry {
	e := Entry{Duration: "-1"}

	i := strings.IndexAny(s, " \t,")
	if i < 0 {
		e.Duration = strings.TrimSpace(s)
		return e
	}
	if d := strings.TrimSpace(s[:i]); d != "" {
		e.Duration = d
	}

	attrs, rest := parseAttrs(s[i:])
	e.Attrs = attrs
	e.Name = strings.TrimSpace(rest)
	if e.Name == "" {
		e.Name = attrs.Get(AttrName)
	}
	return e
}

// parseAttrs consumes key="value" pairs until an unquoted comma and returns
// the attributes plus whatever follows that comma.
func parseAttrs(s string) (Attrs, string) {
	var out Attrs
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
			continue
		case c == ',':
			return out, s[i+1:]
		}

		start := i
		for i < len(s) && s[i] != '=' && s[i] != ' ' && s[i] != ',' {
			i++
		}
		key := s[start:i]
		if i >= len(s) || s[i] != '=' {
			// bare token without a value
			continue
		}
		i++

		var val string
		if i < len(s) && s[i] == '"' {
			end := strings.IndexByte(s[i+1:], '"')
			if end < 0 {
				val = s[i+1:]
				i = len(s)
			} else {
				val = s[i+1 : i+1+end]
				i += end + 2
			}
		} else {
			vs := i
			for i < len(s) && s[i] != ' ' && s[i] != ',' {
				i++
			}
			val = s[vs:i]
		}
		if key != "" {
			out = append(out, Attr{Key: key, Value: val})
		}
	}
	return out, ""
}
