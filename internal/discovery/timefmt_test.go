package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"19:00", "19:00"},
		{"00:00", "00:00"},
		{"9:05", "09:05"},
		{"23:59", "23:59"},
		{"2:30 PM", "14:30"},
		{"2:30PM", "14:30"},
		{"2:30 pm", "14:30"},
		{"12:00 AM", "00:00"},
		{"12:00 PM", "12:00"},
		{"12:30 am", "00:30"},
		{"11:00 AM", "11:00"},
		{"10:00 PM", "22:00"},
		{"19:00:00", "19:00"},
		{" 7:15 pm ", "19:15"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeTime(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeTime_Idempotent(t *testing.T) {
	for h := 0; h < 24; h++ {
		for _, m := range []int{0, 15, 30, 45, 59} {
			in := time.Date(2024, 1, 1, h, m, 0, 0, time.UTC).Format("15:04")
			once, err := NormalizeTime(in)
			require.NoError(t, err)
			assert.Equal(t, in, once)

			twice, err := NormalizeTime(once)
			require.NoError(t, err)
			assert.Equal(t, once, twice)
		}
	}

	for _, opt := range TimeOptions {
		once, err := NormalizeTime(opt)
		require.NoError(t, err, opt)
		twice, err := NormalizeTime(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestNormalizeTime_Invalid(t *testing.T) {
	for _, in := range []string{
		"", "noon", "25:00", "24:00", "12:60", "13:00 PM", "0:30 AM",
		"7", "7:5", "7:05:1", "1:2:3:4", "ab:cd", "100:00",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := NormalizeTime(in)
			assert.ErrorIs(t, err, ErrInvalidTime)
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", d.Format(DateLayout))

	d, err = ParseDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseDate("06/01/2024")
	assert.Error(t, err)
}
