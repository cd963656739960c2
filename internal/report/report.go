// Package report renders the markdown status page regenerated on every run.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
)

const timeLayout = "2006-01-02 03:04 PM MST"

// Link is one of the static playlist references printed under the table.
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Options struct {
	Location   *time.Location
	Links      []Link
	Disclaimer string
}

type Report struct {
	GeneratedAt time.Time
	Working     int
	Dead        []channel.Result
	Links       []Link
	Disclaimer  string
}

func (r Report) Total() int { return r.Working + len(r.Dead) }

// Build counts working channels and collects dead ones sorted by name, then URL.
func Build(results []channel.Result, now time.Time, opts Options) Report {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	r := Report{
		GeneratedAt: now.In(loc),
		Links:       opts.Links,
		Disclaimer:  opts.Disclaimer,
	}
	for _, res := range results {
		if res.Working() {
			r.Working++
			continue
		}
		r.Dead = append(r.Dead, res)
	}
	sort.SliceStable(r.Dead, func(i, j int) bool {
		a, b := strings.ToLower(r.Dead[i].Channel.Name), strings.ToLower(r.Dead[j].Channel.Name)
		if a != b {
			return a < b
		}
		return r.Dead[i].Channel.URL < r.Dead[j].Channel.URL
	})
	return r
}
