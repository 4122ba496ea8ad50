package market

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Session models the exchange trading calendar: daily open/close in the
// exchange timezone, weekends off, plus an explicit holiday list.
type Session struct {
	loc       *time.Location
	openHour  int
	openMin   int
	closeHour int
	closeMin  int
	holidays  map[string]bool // "2006-01-02" in exchange tz
}

type holidayFile struct {
	Holidays []string `yaml:"holidays"`
}

func NewSession(timezone, open, close string) (*Session, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading session timezone: %w", err)
	}
	ot, err := time.Parse("15:04", open)
	if err != nil {
		return nil, fmt.Errorf("parsing session open: %w", err)
	}
	ct, err := time.Parse("15:04", close)
	if err != nil {
		return nil, fmt.Errorf("parsing session close: %w", err)
	}
	return &Session{
		loc:       loc,
		openHour:  ot.Hour(),
		openMin:   ot.Minute(),
		closeHour: ct.Hour(),
		closeMin:  ct.Minute(),
		holidays:  map[string]bool{},
	}, nil
}

// LoadHolidays merges a YAML holiday calendar ({holidays: ["2026-01-26", ...]}).
func (s *Session) LoadHolidays(path string) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading holidays file: %w", err)
	}
	var hf holidayFile
	if err := yaml.Unmarshal(raw, &hf); err != nil {
		return fmt.Errorf("parsing holidays file: %w", err)
	}
	for _, day := range hf.Holidays {
		if _, err := time.ParseInLocation("2006-01-02", day, s.loc); err != nil {
			return fmt.Errorf("invalid holiday %q: %w", day, err)
		}
		s.holidays[day] = true
	}
	return nil
}

func (s *Session) Location() *time.Location { return s.loc }

// IsTradingDay reports whether t falls on a weekday that is not a holiday.
func (s *Session) IsTradingDay(t time.Time) bool {
	t = t.In(s.loc)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !s.holidays[t.Format("2006-01-02")]
}

// IsOpen reports whether t falls inside the trading session.
func (s *Session) IsOpen(t time.Time) bool {
	if !s.IsTradingDay(t) {
		return false
	}
	t = t.In(s.loc)
	mins := t.Hour()*60 + t.Minute()
	open := s.openHour*60 + s.openMin
	close := s.closeHour*60 + s.closeMin
	return mins >= open && mins < close
}

// AddTradingDays returns the date n trading days after t, skipping weekends
// and holidays. n=0 returns t unchanged.
func (s *Session) AddTradingDays(t time.Time, n int) time.Time {
	t = t.In(s.loc)
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if s.IsTradingDay(t) {
			n--
		}
	}
	return t
}

// At returns the instant on t's date at clock time hh:mm in the exchange tz.
func (s *Session) At(t time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), parsed.Hour(), parsed.Minute(), 0, 0, s.loc), nil
}
