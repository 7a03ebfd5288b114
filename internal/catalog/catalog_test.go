package catalog

import (
	"testing"
	"time"
)

// Thursday 2026-01-08, so the default horizon (tomorrow + 7 days) spans
// Fri 09 .. Thu 15 with Sunday 11 skipped.
func fixedNow() time.Time {
	return time.Date(2026, 1, 8, 12, 0, 0, 0, time.UTC)
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	return New(DefaultConfig(), fixedNow)
}

func TestDates_SkipsNonWorkingDays(t *testing.T) {
	c := testCatalog(t)
	dates := c.Dates()

	want := []string{
		"2026-01-09", // Fri
		"2026-01-10", // Sat
		"2026-01-12", // Mon (Sun 11 skipped)
		"2026-01-13",
		"2026-01-14",
		"2026-01-15",
	}
	if len(dates) != len(want) {
		t.Fatalf("expected %d dates, got %d: %v", len(want), len(dates), dates)
	}
	for i := range want {
		if dates[i] != want[i] {
			t.Errorf("dates[%d] = %s, want %s", i, dates[i], want[i])
		}
	}
}

func TestDates_StartToday(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartTomorrow = false
	c := New(cfg, fixedNow)

	dates := c.Dates()
	if len(dates) == 0 || dates[0] != "2026-01-08" {
		t.Fatalf("expected horizon to start today, got %v", dates)
	}
}

func TestSlotGrid(t *testing.T) {
	c := testCatalog(t)

	grid := c.SlotGrid("2026-01-09")
	if len(grid) != 8 {
		t.Fatalf("expected 8 hourly slots between 10:00 and 18:00, got %d: %v", len(grid), grid)
	}
	if grid[0] != "10:00" || grid[7] != "17:00" {
		t.Errorf("unexpected grid bounds: first=%s last=%s", grid[0], grid[7])
	}
}

func TestSlotGrid_OutsideHorizon(t *testing.T) {
	c := testCatalog(t)

	for _, date := range []string{
		"2026-01-08", // today, horizon starts tomorrow
		"2026-01-11", // Sunday
		"2026-02-01", // beyond horizon
		"2025-12-01", // past
		"garbage",
	} {
		if grid := c.SlotGrid(date); grid != nil {
			t.Errorf("expected empty grid for %s, got %v", date, grid)
		}
	}
}

func TestSlotGrid_HalfHourStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OpenHour = 9
	cfg.CloseHour = 11
	cfg.SlotMinutes = 30
	c := New(cfg, fixedNow)

	grid := c.SlotGrid("2026-01-09")
	want := []string{"09:00", "09:30", "10:00", "10:30"}
	if len(grid) != len(want) {
		t.Fatalf("expected %v, got %v", want, grid)
	}
	for i := range want {
		if grid[i] != want[i] {
			t.Errorf("grid[%d] = %s, want %s", i, grid[i], want[i])
		}
	}
}

func TestServiceByID(t *testing.T) {
	c := testCatalog(t)

	if _, ok := c.ServiceByID("haircut"); !ok {
		t.Error("expected haircut to exist")
	}
	if _, ok := c.ServiceByID("massage"); ok {
		t.Error("expected massage to be unknown")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OpenHour = 19
	cfg.CloseHour = 10
	if err := cfg.validate(); err == nil {
		t.Error("expected inverted business hours to be rejected")
	}

	cfg = DefaultConfig()
	cfg.Services = nil
	if err := cfg.validate(); err == nil {
		t.Error("expected empty service list to be rejected")
	}
}
