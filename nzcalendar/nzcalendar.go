/*
Package nzcalendar provides the New Zealand statutory holiday table.

PURPOSE:
  Statutory deadline counting (engine.WorkingDayCalendar) needs to know
  which days are gazetted holidays. This package carries that table as
  DATA, versioned by compliance year: national public holidays on their
  observed (mondayised) dates, plus regional anniversary days.

DATA SOURCE:
  holidays.yaml, embedded at build time. The table can also be loaded
  from an external file, so a deployment can extend coverage to new
  compliance years without a rebuild.

UNKNOWN YEARS:
  HasYear reports false for years with no data. The working-day calendar
  then falls back to weekend-only counting with a loud warning - this
  package never guesses a holiday date.

REGIONS:
  Region keys are lowercase ("auckland", "wellington", "canterbury",
  "otago", ...). An empty region means national holidays only.
*/
package nzcalendar

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/warp/tenancy-engine/engine"
)

//go:embed holidays.yaml
var embeddedTable []byte

// =============================================================================
// DATA SHAPE (YAML)
// =============================================================================

type yearData struct {
	// National statutory holidays, observed dates, "2006-01-02".
	National []string `yaml:"national"`

	// Regional anniversary days by region key.
	Regional map[string][]string `yaml:"regional"`
}

type tableFile struct {
	Years map[int]yearData `yaml:"years"`
}

// =============================================================================
// CALENDAR
// =============================================================================

// Calendar implements engine.HolidayCalendar from a year-versioned table.
// Immutable after construction; safe for concurrent use.
type Calendar struct {
	years map[int]yearHolidays
}

type yearHolidays struct {
	national map[string]bool
	regional map[string]map[string]bool
}

var _ engine.HolidayCalendar = (*Calendar)(nil)

// New returns the calendar backed by the embedded table.
func New() (*Calendar, error) {
	return Load(strings.NewReader(string(embeddedTable)))
}

// MustNew is New for wiring paths where the embedded table failing to
// parse is a programming error.
func MustNew() *Calendar {
	c, err := New()
	if err != nil {
		panic(fmt.Sprintf("nzcalendar: embedded table invalid: %v", err))
	}
	return c
}

// LoadFile loads an external holiday table.
func LoadFile(path string) (*Calendar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open holiday table: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a YAML holiday table.
func Load(r io.Reader) (*Calendar, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read holiday table: %w", err)
	}

	var file tableFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse holiday table: %w", err)
	}

	cal := &Calendar{years: make(map[int]yearHolidays, len(file.Years))}
	for year, data := range file.Years {
		yh := yearHolidays{
			national: make(map[string]bool, len(data.National)),
			regional: make(map[string]map[string]bool, len(data.Regional)),
		}
		for _, s := range data.National {
			d, err := engine.ParseDate(s)
			if err != nil {
				return nil, fmt.Errorf("year %d national: %w", year, err)
			}
			if d.Year() != year {
				return nil, fmt.Errorf("year %d national: holiday %s listed under wrong year", year, s)
			}
			yh.national[d.String()] = true
		}
		for region, dates := range data.Regional {
			key := strings.ToLower(region)
			yh.regional[key] = make(map[string]bool, len(dates))
			for _, s := range dates {
				d, err := engine.ParseDate(s)
				if err != nil {
					return nil, fmt.Errorf("year %d region %s: %w", year, region, err)
				}
				yh.regional[key][d.String()] = true
			}
		}
		cal.years[year] = yh
	}
	return cal, nil
}

// HasYear reports whether the table covers the given compliance year.
func (c *Calendar) HasYear(year int) bool {
	_, ok := c.years[year]
	return ok
}

// IsHoliday reports whether date is a national statutory holiday or, when
// region is non-empty, that region's anniversary day.
func (c *Calendar) IsHoliday(date engine.Date, region string) bool {
	yh, ok := c.years[date.Year()]
	if !ok {
		return false
	}
	if yh.national[date.String()] {
		return true
	}
	if region == "" {
		return false
	}
	return yh.regional[strings.ToLower(region)][date.String()]
}

// Years returns the covered compliance years, for diagnostics.
func (c *Calendar) Years() []int {
	out := make([]int, 0, len(c.years))
	for y := range c.years {
		out = append(out, y)
	}
	return out
}
