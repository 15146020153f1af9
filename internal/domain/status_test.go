package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolroom/internal/domain"
)

func TestParseStatusesRejectUnknown(t *testing.T) {
	_, err := domain.ParseItemStatus("broken")
	assert.Error(t, err)
	_, err = domain.ParseRequestStatus("maybe")
	assert.Error(t, err)
	_, err = domain.ParseRentalStatus("lost")
	assert.Error(t, err)
	_, err = domain.ParseCalibrationStatus("pending")
	assert.Error(t, err)
	_, err = domain.ParseRequestType("purchase")
	assert.Error(t, err)
}

func TestParseStatusesRoundTrip(t *testing.T) {
	for _, s := range []string{"available", "requested", "on_loan", "in_calibration", "retired"} {
		v, err := domain.ParseItemStatus(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(v))
	}
	for _, s := range []string{"borrow", "calibration"} {
		v, err := domain.ParseRequestType(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(v))
	}
}

func TestTerminalStates(t *testing.T) {
	assert.False(t, domain.RequestPending.Terminal())
	assert.False(t, domain.RequestApproved.Terminal())
	assert.True(t, domain.RequestRejected.Terminal())
	assert.True(t, domain.RequestClosed.Terminal())

	assert.False(t, domain.RentalActive.Terminal())
	assert.False(t, domain.RentalOverdue.Terminal())
	assert.True(t, domain.RentalReturned.Terminal())

	assert.False(t, domain.CalibrationScheduled.Terminal())
	assert.True(t, domain.CalibrationCompleted.Terminal())
	assert.True(t, domain.CalibrationFailed.Terminal())
}
