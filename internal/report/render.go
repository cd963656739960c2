package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	headerPrefix  = "## Last Updated: "
	linkSuffix    = " Channels URL"
	disclaimerHdr = "#### Disclaimer"
	allWorking    = "All streams are working."
	fence         = "```"
	rule          = "---"
)

var tableHeader = table.Row{"Channel", "Error (Code)", "Link"}

func summaryLine(working, dead int) string {
	return fmt.Sprintf("### ✅ Working Streams: %d<br>❌ Dead Streams: %d<br>📺 Total Streams: %d",
		working, dead, working+dead)
}

func deadTable(r Report) string {
	t := table.NewWriter()
	t.AppendHeader(tableHeader)
	for _, res := range r.Dead {
		t.AppendRow(table.Row{res.Channel.Name, res.ErrorLabel(), "`" + res.Channel.URL + "`"})
	}
	return t.RenderMarkdown()
}

// Render writes the report as markdown.
func Render(w io.Writer, r Report) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%s%s\n\n", headerPrefix, r.GeneratedAt.Format(timeLayout))
	fmt.Fprintf(bw, "%s\n\n", summaryLine(r.Working, len(r.Dead)))

	if len(r.Dead) == 0 {
		fmt.Fprintf(bw, "%s\n", allWorking)
	} else {
		fmt.Fprintf(bw, "%s\n", deadTable(r))
	}

	fmt.Fprintf(bw, "\n%s\n", rule)
	for i, l := range r.Links {
		if i > 0 {
			bw.WriteString("\n")
		}
		fmt.Fprintf(bw, "#### %s%s\n%s\n%s\n%s\n", l.Title, linkSuffix, fence, l.URL, fence)
	}
	fmt.Fprintf(bw, "%s\n%s\n", rule, disclaimerHdr)
	if r.Disclaimer != "" {
		fmt.Fprintf(bw, "%s\n", r.Disclaimer)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
