// Package catalog defines the bookable services and the time grid offered to
// clients: a rolling horizon of upcoming dates, each with a fixed set of
// time-of-day slots derived from the configured business hours.
package catalog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bookingbot/internal/models"
)

// Config describes the schedule offered for booking. It is loaded once at
// startup and never changes at runtime.
type Config struct {
	Services      []models.Service `yaml:"services"`
	OpenHour      int              `yaml:"open_hour"`
	CloseHour     int              `yaml:"close_hour"`
	SlotMinutes   int              `yaml:"slot_minutes"`
	WorkingDays   []string         `yaml:"working_days"`
	HorizonDays   int              `yaml:"horizon_days"`
	StartTomorrow bool             `yaml:"start_tomorrow"`
}

// DefaultConfig is the schedule used when no catalog file is configured:
// hourly slots 10:00-18:00, Monday through Saturday, next 7 days starting
// tomorrow.
func DefaultConfig() Config {
	return Config{
		Services: []models.Service{
			{ID: "haircut", Label: "Haircut"},
			{ID: "coloring", Label: "Coloring"},
			{ID: "manicure", Label: "Manicure"},
		},
		OpenHour:      10,
		CloseHour:     18,
		SlotMinutes:   60,
		WorkingDays:   []string{"mon", "tue", "wed", "thu", "fri", "sat"},
		HorizonDays:   7,
		StartTomorrow: true,
	}
}

// LoadConfig reads a catalog config from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read catalog file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.Services) == 0 {
		return fmt.Errorf("catalog config has no services")
	}
	if c.OpenHour < 0 || c.CloseHour > 24 || c.OpenHour >= c.CloseHour {
		return fmt.Errorf("invalid business hours %d-%d", c.OpenHour, c.CloseHour)
	}
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("invalid slot step %d minutes", c.SlotMinutes)
	}
	if c.HorizonDays <= 0 {
		return fmt.Errorf("invalid horizon of %d days", c.HorizonDays)
	}
	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// Catalog answers which services exist and which (date, time) slots can be
// offered right now. Pure functions of the config and the injected clock.
type Catalog struct {
	cfg     Config
	now     func() time.Time
	working map[time.Weekday]bool
}

// New builds a catalog from config. now is the clock used to compute the
// rolling horizon; pass time.Now in production.
func New(cfg Config, now func() time.Time) *Catalog {
	working := make(map[time.Weekday]bool, len(cfg.WorkingDays))
	for _, name := range cfg.WorkingDays {
		if wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]; ok {
			working[wd] = true
		}
	}
	return &Catalog{cfg: cfg, now: now, working: working}
}

// Services returns the bookable services in catalog order.
func (c *Catalog) Services() []models.Service {
	out := make([]models.Service, len(c.cfg.Services))
	copy(out, c.cfg.Services)
	return out
}

// ServiceByID looks a service up by its id.
func (c *Catalog) ServiceByID(id string) (models.Service, bool) {
	for _, s := range c.cfg.Services {
		if s.ID == id {
			return s, true
		}
	}
	return models.Service{}, false
}

// Dates returns the bookable dates of the current horizon window in order,
// skipping non-working weekdays.
func (c *Catalog) Dates() []string {
	start := c.now()
	if c.cfg.StartTomorrow {
		start = start.AddDate(0, 0, 1)
	}
	var dates []string
	for i := 0; i < c.cfg.HorizonDays; i++ {
		d := start.AddDate(0, 0, i)
		if c.working[d.Weekday()] {
			dates = append(dates, d.Format(models.DateLayout))
		}
	}
	return dates
}

// InHorizon reports whether date is currently offered for booking.
func (c *Catalog) InHorizon(date string) bool {
	for _, d := range c.Dates() {
		if d == date {
			return true
		}
	}
	return false
}

// SlotGrid returns the ordered time labels for date, or nil if the date is
// outside the horizon or not a working day.
func (c *Catalog) SlotGrid(date string) []string {
	if !c.InHorizon(date) {
		return nil
	}
	var slots []string
	step := time.Duration(c.cfg.SlotMinutes) * time.Minute
	day := time.Date(0, 1, 1, c.cfg.OpenHour, 0, 0, 0, time.UTC)
	end := time.Date(0, 1, 1, c.cfg.CloseHour, 0, 0, 0, time.UTC)
	for t := day; t.Before(end); t = t.Add(step) {
		slots = append(slots, t.Format("15:04"))
	}
	return slots
}

// InGrid reports whether the time label belongs to the slot grid for date.
func (c *Catalog) InGrid(date, timeLabel string) bool {
	for _, t := range c.SlotGrid(date) {
		if t == timeLabel {
			return true
		}
	}
	return false
}
