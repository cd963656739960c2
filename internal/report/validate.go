package report

import (
	"errors"
	"fmt"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
)

var (
	ErrCounts          = errors.New("working + dead does not equal total")
	ErrRowCount        = errors.New("dead count does not match table rows")
	ErrEmptyURL        = errors.New("dead row has empty url")
	ErrImplausibleCode = errors.New("dead row has implausible status code")
	ErrDuplicateName   = errors.New("duplicate channel name")
	ErrLinks           = errors.New("shortlinks differ from configuration")
)

// Validate checks the structural invariants of a parsed report. links may be
// nil to skip the shortlink comparison.
func Validate(p *Parsed, links []Link) []error {
	var errs []error
	if p.Working+p.Dead != p.Total {
		errs = append(errs, fmt.Errorf("%w: %d + %d != %d", ErrCounts, p.Working, p.Dead, p.Total))
	}
	if p.Dead != len(p.Rows) {
		errs = append(errs, fmt.Errorf("%w: summary says %d, table has %d", ErrRowCount, p.Dead, len(p.Rows)))
	}
	if p.AllWorking && len(p.Rows) > 0 {
		errs = append(errs, fmt.Errorf("%w: %q printed next to %d rows", ErrRowCount, allWorking, len(p.Rows)))
	}

	seen := make(map[string]int, len(p.Rows))
	for i, row := range p.Rows {
		n := i + 1
		if row.URL == "" {
			errs = append(errs, fmt.Errorf("%w: row %d (%s)", ErrEmptyURL, n, row.Name))
		}
		if !channel.PlausibleCode(row.Code) {
			errs = append(errs, fmt.Errorf("%w: row %d (%s) code %d", ErrImplausibleCode, n, row.Name, row.Code))
		}
		if first, dup := seen[row.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: %q at rows %d and %d", ErrDuplicateName, row.Name, first, n))
			continue
		}
		seen[row.Name] = n
	}

	if links != nil && !sameLinks(p.Links, links) {
		errs = append(errs, fmt.Errorf("%w: got %v, want %v", ErrLinks, p.Links, links))
	}
	return errs
}

func sameLinks(got, want []Link) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
