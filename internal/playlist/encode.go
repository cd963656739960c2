package playlist

import (
	"bufio"
	"io"
	"strings"
)

func Encode(w io.Writer, p *Playlist) error {
	bw := bufio.NewWriter(w)

	bw.WriteString(tagHeader)
	writeAttrs(bw, p.Header)
	bw.WriteByte('\n')
	writeEntries(bw, p.Entries)
	return bw.Flush()
}

func writeEntries(bw *bufio.Writer, entries []Entry) {
	for _, e := range entries {
		bw.WriteByte('\n')
		bw.WriteString(tagInfo)
		d := e.Duration
		if d == "" {
			d = "-1"
		}
		bw.WriteString(d)
		writeAttrs(bw, e.Attrs)
		bw.WriteByte(',')
		bw.WriteString(e.Name)
		bw.WriteByte('\n')

		for _, o := range e.VLCOpts {
			bw.WriteString(tagVLCOpt)
			bw.WriteString(o.Key)
			bw.WriteByte('=')
			bw.WriteString(o.Value)
			bw.WriteByte('\n')
		}
		bw.WriteString(e.URL)
		bw.WriteByte('\n')
	}
}

// writeAttrs quotes every value. A value holding a double quote is written
// bare when it has no separator and does not start with a quote, which Parse
// reads back as is. Any other embedded quote becomes a single quote.
func writeAttrs(bw *bufio.Writer, attrs Attrs) {
	for _, a := range attrs {
		bw.WriteByte(' ')
		bw.WriteString(a.Key)
		bw.WriteByte('=')
		switch {
		case !strings.Contains(a.Value, `"`):
			bw.WriteByte('"')
			bw.WriteString(a.Value)
			bw.WriteByte('"')
		case bareSafe(a.Value):
			bw.WriteString(a.Value)
		default:
			bw.WriteByte('"')
			bw.WriteString(strings.ReplaceAll(a.Value, `"`, "'"))
			bw.WriteByte('"')
		}
	}
}

func bareSafe(v string) bool {
	return v != "" && v[0] != '"' && !strings.ContainsAny(v, " ,")
}
