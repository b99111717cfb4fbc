package errs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"iaros/retailing-engine/internal/errs"
)

func TestHTTPStatusOfferAlreadyAccepted(t *testing.T) {
	assert.Equal(t, 409, errs.HTTPStatus(errs.KindOfferAlreadyAccepted))
}

func TestIsMatchesKind(t *testing.T) {
	err := errs.OfferAlreadyAccepted("offer o1 already accepted")
	assert.True(t, errs.Is(err, errs.KindOfferAlreadyAccepted))
	assert.False(t, errs.Is(err, errs.KindExpired))
}
