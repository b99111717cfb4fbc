package hold

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitFlightSeatSplitsOnLastColon(t *testing.T) {
	flightID, seat := splitFlightSeat("FL123:AA:14C")
	assert.Equal(t, "FL123:AA", flightID)
	assert.Equal(t, "14C", seat)
}

func TestSplitFlightSeatNoColonReturnsWholeKeyAsFlight(t *testing.T) {
	flightID, seat := splitFlightSeat("FL123")
	assert.Equal(t, "FL123", flightID)
	assert.Equal(t, "", seat)
}
