package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrMalformed = errors.New("malformed report")

var (
	summaryRe = regexp.MustCompile(`Working Streams:\s*(\d+).*Dead Streams:\s*(\d+).*Total Streams:\s*(\d+)`)
	errorRe   = regexp.MustCompile(`^(.*?)\s*\((\d+|N/A)\)$`)
	sepRe     = regexp.MustCompile(`^:?-{3,}:?$`)
)

// Row is one dead channel read back from a rendered report.
// Code is -1 when the error column could not be parsed.
type Row struct {
	Name   string
	Reason string
	Code   int
	URL    string
}

type Parsed struct {
	Updated     string
	GeneratedAt time.Time
	Working     int
	Dead        int
	Total       int
	AllWorking  bool
	Rows        []Row
	Links       []Link
	Disclaimer  string
}

type section int

const (
	secHead section = iota
	secLinks
	secDisclaimer
)

// Parse reads a report produced by Render.
func Parse(r io.Reader) (*Parsed, error) {
	p := &Parsed{}
	var (
		sec        = secHead
		seenHeader bool
		seenSum    bool
		tableLine  int
		linkTitle  string
		inFence    bool
		fenceBody  []string
		disclaimer []string
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		switch sec {
		case secHead:
			switch {
			case strings.HasPrefix(trimmed, headerPrefix):
				seenHeader = true
				p.Updated = strings.TrimPrefix(trimmed, headerPrefix)
				if t, err := time.Parse(timeLayout, p.Updated); err == nil {
					p.GeneratedAt = t
				}
			case strings.HasPrefix(trimmed, "###") && summaryRe.MatchString(trimmed):
				m := summaryRe.FindStringSubmatch(trimmed)
				p.Working, _ = strconv.Atoi(m[1])
				p.Dead, _ = strconv.Atoi(m[2])
				p.Total, _ = strconv.Atoi(m[3])
				seenSum = true
			case trimmed == allWorking:
				p.AllWorking = true
			case strings.HasPrefix(trimmed, "|"):
				tableLine++
				cells := splitCells(trimmed)
				if tableLine == 1 || isSeparator(cells) {
					continue
				}
				p.Rows = append(p.Rows, parseRow(cells))
			case trimmed == rule:
				sec = secLinks
			}

		case secLinks:
			switch {
			case inFence && trimmed == fence:
				inFence = false
				p.Links = append(p.Links, Link{Title: linkTitle, URL: strings.TrimSpace(strings.Join(fenceBody, "\n"))})
				linkTitle, fenceBody = "", nil
			case inFence:
				fenceBody = append(fenceBody, trimmed)
			case trimmed == disclaimerHdr:
				sec = secDisclaimer
			case strings.HasPrefix(trimmed, "#### ") && strings.HasSuffix(trimmed, linkSuffix):
				linkTitle = strings.TrimSuffix(strings.TrimPrefix(trimmed, "#### "), linkSuffix)
			case trimmed == fence && linkTitle != "":
				inFence = true
			}

		case secDisclaimer:
			disclaimer = append(disclaimer, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if !seenHeader {
		return nil, fmt.Errorf("%w: missing %q header", ErrMalformed, strings.TrimSpace(headerPrefix))
	}
	if !seenSum {
		return nil, fmt.Errorf("%w: missing summary line", ErrMalformed)
	}
	p.Disclaimer = strings.TrimSpace(strings.Join(disclaimer, "\n"))
	return p, nil
}

// splitCells splits a markdown table line on unescaped pipes.
func splitCells(line string) []string {
	line = strings.TrimPrefix(line, "|")
	if strings.HasSuffix(line, "|") && !strings.HasSuffix(line, `\|`) {
		line = line[:len(line)-1]
	}
	var (
		cells []string
		cur   strings.Builder
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '\\' && i+1 < len(line) && line[i+1] == '|' {
			cur.WriteByte('|')
			i++
			continue
		}
		if c == '|' {
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	return append(cells, strings.TrimSpace(cur.String()))
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		if !sepRe.MatchString(c) {
			return false
		}
	}
	return len(cells) > 0
}

func parseRow(cells []string) Row {
	for len(cells) < 3 {
		cells = append(cells, "")
	}
	row := Row{Name: cells[0], Code: -1, Reason: cells[1]}
	if m := errorRe.FindStringSubmatch(cells[1]); m != nil {
		row.Reason = m[1]
		if m[2] == "N/A" {
			row.Code = 0
		} else if n, err := strconv.Atoi(m[2]); err == nil {
			row.Code = n
		}
	}
	row.URL = strings.TrimSpace(strings.Trim(cells[2], "`"))
	return row
}
