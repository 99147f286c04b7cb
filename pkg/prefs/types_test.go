package prefs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legiswatch/notify/pkg/prefs"
)

func TestPreferencesValidate(t *testing.T) {
	t.Parallel()

	valid := prefs.Preferences{
		Channel:       prefs.ChannelEmail,
		Cadence:       prefs.CadenceWeekly,
		DigestHour:    6,
		DigestMinute:  30,
		DigestWeekday: time.Friday,
		Keys:          map[prefs.Key]bool{prefs.KeyBills: true},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*prefs.Preferences)
	}{
		{name: "unknown channel", mutate: func(p *prefs.Preferences) { p.Channel = "sms" }},
		{name: "unknown cadence", mutate: func(p *prefs.Preferences) { p.Cadence = "hourly" }},
		{name: "hour too high", mutate: func(p *prefs.Preferences) { p.DigestHour = 24 }},
		{name: "hour negative", mutate: func(p *prefs.Preferences) { p.DigestHour = -1 }},
		{name: "minute too high", mutate: func(p *prefs.Preferences) { p.DigestMinute = 60 }},
		{name: "weekday out of range", mutate: func(p *prefs.Preferences) { p.DigestWeekday = 7 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := valid
			tt.mutate(&p)
			require.ErrorIs(t, p.Validate(), prefs.ErrInvalidPreferences)
		})
	}
}

func TestCadenceIsDigest(t *testing.T) {
	t.Parallel()

	assert.False(t, prefs.CadenceInstant.IsDigest())
	assert.True(t, prefs.CadenceDaily.IsDigest())
	assert.True(t, prefs.CadenceWeekly.IsDigest())
}

func TestHasAnyKey(t *testing.T) {
	t.Parallel()

	assert.False(t, prefs.Preferences{}.HasAnyKey())
	assert.False(t, prefs.Preferences{Keys: map[prefs.Key]bool{prefs.KeyBills: false}}.HasAnyKey())
	assert.True(t, prefs.Preferences{Keys: map[prefs.Key]bool{prefs.KeyBills: true}}.HasAnyKey())
}
