package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUTC(t *testing.T) {
	epoch, err := ParseUTC("1970-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, int64(0), epoch)

	epoch, err = ParseUTC("2024-05-01T12:30:45Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1714566645), epoch)

	_, err = ParseUTC("yesterday")
	assert.Error(t, err)
}

func TestToUTC(t *testing.T) {
	assert.Equal(t, "1970-01-01T00:00:00Z", ToUTC(0))
	assert.Equal(t, "2024-05-01T12:30:45Z", ToUTC(1714566645))
}

func TestUTCRoundTrip(t *testing.T) {
	for _, epoch := range []int64{0, 1, 1714566645, 2000000000} {
		parsed, err := ParseUTC(ToUTC(epoch))
		require.NoError(t, err)
		assert.Equal(t, epoch, parsed)
	}
}
