package catalog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"iaros/retailing-engine/internal/catalog"
)

func TestEffectiveCapacityAppliesOverbooking(t *testing.T) {
	f := catalog.Flight{Capacity: 100, OverbookingPct: 0.1}
	assert.Equal(t, 110, f.EffectiveCapacity())
}

func TestEffectiveCapacityNoOverbookingReturnsCapacity(t *testing.T) {
	f := catalog.Flight{Capacity: 100}
	assert.Equal(t, 100, f.EffectiveCapacity())
}

func TestDaysUntilDepartureFloorsToWholeDays(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := catalog.Flight{ScheduledDeparture: now.Add(36 * time.Hour)}
	assert.Equal(t, 1, f.DaysUntilDeparture(now))
}

func TestDaysUntilDepartureNeverNegative(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := catalog.Flight{ScheduledDeparture: now.Add(-time.Hour)}
	assert.Equal(t, 0, f.DaysUntilDeparture(now))
}
