package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/domain"
	"courtbook/internal/models"

	"github.com/rs/zerolog"
)

// CatalogFile is the seed document for venues and their courts.
type CatalogFile struct {
	Venues []VenueEntry `yaml:"venues"`
}

type VenueEntry struct {
	ID           int64               `yaml:"id"`
	Name         string              `yaml:"name"`
	Address      string              `yaml:"address"`
	City         string              `yaml:"city"`
	State        string              `yaml:"state"`
	ZipCode      string              `yaml:"zip_code"`
	ManagerID    string              `yaml:"manager_id"`
	Approved     bool                `yaml:"approved"`
	OpeningTime  string              `yaml:"opening_time"`
	ClosingTime  string              `yaml:"closing_time"`
	Policy       models.Policy       `yaml:"policy"`
	SpecialHours []SpecialHoursEntry `yaml:"special_hours"`
	Courts       []CourtEntry        `yaml:"courts"`
}

type SpecialHoursEntry struct {
	Date        string `yaml:"date"`
	Closed      bool   `yaml:"closed"`
	OpeningTime string `yaml:"opening_time"`
	ClosingTime string `yaml:"closing_time"`
}

type CourtEntry struct {
	Number       int                `yaml:"number"`
	Type         string             `yaml:"type"`
	Active       *bool              `yaml:"active"`
	Restrictions []RestrictionEntry `yaml:"restrictions"`
}

type RestrictionEntry struct {
	Weekday   string `yaml:"weekday"`
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`
	Reason    string `yaml:"reason"`
}

// SeedStats counts the records written by Seed.
type SeedStats struct {
	Venues       int
	Courts       int
	SpecialHours int
	Restrictions int
}

// CatalogService loads catalog seed data. It is not a management API: the
// booking engine only reads these records.
type CatalogService struct {
	store    domain.CatalogWriter
	defaults config.BookingDefaults
	logger   *zerolog.Logger
}

func NewCatalogService(store domain.CatalogWriter, defaults config.BookingDefaults, logger *zerolog.Logger) *CatalogService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CatalogService{store: store, defaults: defaults, logger: logger}
}

type venuePlan struct {
	venue   models.Venue
	special []*models.SpecialHours
	courts  []courtPlan
}

type courtPlan struct {
	court        models.Court
	restrictions []*models.RecurringRestriction
}

// Seed validates the whole file before writing anything, then upserts each
// venue with its special hours, courts and restrictions.
func (s *CatalogService) Seed(ctx context.Context, file *CatalogFile) (SeedStats, error) {
	var stats SeedStats
	if file == nil || len(file.Venues) == 0 {
		return stats, errors.New("catalog has no venues")
	}

	plans := make([]venuePlan, 0, len(file.Venues))
	for i := range file.Venues {
		plan, err := s.plan(&file.Venues[i])
		if err != nil {
			return stats, fmt.Errorf("venue #%d: %w", i+1, err)
		}
		plans = append(plans, plan)
	}

	for i := range plans {
		p := &plans[i]
		if err := s.store.UpsertVenue(ctx, &p.venue); err != nil {
			return stats, err
		}
		stats.Venues++

		for _, sh := range p.special {
			sh.VenueID = p.venue.ID
			if err := s.store.UpsertSpecialHours(ctx, sh); err != nil {
				return stats, err
			}
			stats.SpecialHours++
		}

		for j := range p.courts {
			c := &p.courts[j]
			c.court.VenueID = p.venue.ID
			if err := s.store.UpsertCourt(ctx, &c.court); err != nil {
				return stats, err
			}
			if err := s.store.ReplaceRestrictions(ctx, c.court.ID, c.restrictions); err != nil {
				return stats, err
			}
			stats.Courts++
			stats.Restrictions += len(c.restrictions)
		}

		s.logger.Info().
			Int64("venue_id", p.venue.ID).
			Str("venue", p.venue.Name).
			Int("courts", len(p.courts)).
			Msg("venue seeded")
	}
	return stats, nil
}

func (s *CatalogService) plan(e *VenueEntry) (venuePlan, error) {
	var plan venuePlan

	venue := models.Venue{
		ID:       e.ID,
		Name:     strings.TrimSpace(e.Name),
		Address:  e.Address,
		City:     e.City,
		State:    e.State,
		ZipCode:  e.ZipCode,
		Approved: e.Approved,
		Policy:   e.Policy,
	}
	if e.ManagerID != "" {
		manager := e.ManagerID
		venue.ManagerID = &manager
	}
	if e.OpeningTime != "" || e.ClosingTime != "" {
		open, err := models.ParseTimeOfDay(e.OpeningTime)
		if err != nil {
			return plan, fmt.Errorf("opening_time: %w", err)
		}
		closing, err := models.ParseTimeOfDay(e.ClosingTime)
		if err != nil {
			return plan, fmt.Errorf("closing_time: %w", err)
		}
		venue.OpeningTime, venue.ClosingTime = open, closing
	}

	venue, err := s.defaults.Apply(venue)
	if err != nil {
		return plan, err
	}
	if err := venue.Validate(); err != nil {
		return plan, err
	}
	plan.venue = venue

	for _, she := range e.SpecialHours {
		sh, err := parseSpecialHours(she)
		if err != nil {
			return plan, fmt.Errorf("venue %q: %w", venue.Name, err)
		}
		plan.special = append(plan.special, sh)
	}

	numbers := make(map[int]bool, len(e.Courts))
	for _, ce := range e.Courts {
		active := true
		if ce.Active != nil {
			active = *ce.Active
		}
		court := models.Court{Number: ce.Number, Type: strings.ToLower(ce.Type), Active: active}
		if err := court.Validate(); err != nil {
			return plan, fmt.Errorf("venue %q: %w", venue.Name, err)
		}
		if numbers[court.Number] {
			return plan, fmt.Errorf("venue %q: duplicate court number %d", venue.Name, court.Number)
		}
		numbers[court.Number] = true

		cp := courtPlan{court: court, restrictions: []*models.RecurringRestriction{}}
		for _, re := range ce.Restrictions {
			r, err := parseRestriction(re)
			if err != nil {
				return plan, fmt.Errorf("venue %q court %d: %w", venue.Name, court.Number, err)
			}
			cp.restrictions = append(cp.restrictions, r)
		}
		plan.courts = append(plan.courts, cp)
	}
	return plan, nil
}

func parseSpecialHours(e SpecialHoursEntry) (*models.SpecialHours, error) {
	date, err := models.ParseDate(e.Date)
	if err != nil {
		return nil, err
	}
	sh := &models.SpecialHours{Date: date, Closed: e.Closed}
	if !e.Closed {
		open, err := models.ParseTimeOfDay(e.OpeningTime)
		if err != nil {
			return nil, fmt.Errorf("special hours %s: %w", e.Date, err)
		}
		closing, err := models.ParseTimeOfDay(e.ClosingTime)
		if err != nil {
			return nil, fmt.Errorf("special hours %s: %w", e.Date, err)
		}
		sh.OpeningTime, sh.ClosingTime = &open, &closing
	}
	if err := sh.Validate(); err != nil {
		return nil, err
	}
	return sh, nil
}

func parseRestriction(e RestrictionEntry) (*models.RecurringRestriction, error) {
	weekday, err := ParseWeekday(e.Weekday)
	if err != nil {
		return nil, err
	}
	start, err := models.ParseTimeOfDay(e.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := models.ParseTimeOfDay(e.EndTime)
	if err != nil {
		return nil, err
	}
	r := &models.RecurringRestriction{Weekday: weekday, StartTime: start, EndTime: end, Reason: e.Reason}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// ParseWeekday accepts an English day name, its three-letter prefix or 0..6
// with Sunday as 0.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("weekday %d out of range 0..6", n)
		}
		return time.Weekday(n), nil
	}
	if len(s) >= 3 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			name := strings.ToLower(d.String())
			if s == name || s == name[:3] {
				return d, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
