package prefs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legiswatch/notify/pkg/prefs"
)

func TestDefaultKindMapCoversAllKinds(t *testing.T) {
	t.Parallel()

	m, err := prefs.DefaultKindMap()
	require.NoError(t, err)
	assert.Equal(t, 2, m.Version())

	wantKeys := map[prefs.Kind]prefs.Key{
		prefs.KindBillIntroduced:     prefs.KeyBills,
		prefs.KindBillStatusChanged:  prefs.KeyBills,
		prefs.KindVoteRecorded:       prefs.KeyVotes,
		prefs.KindHearingScheduled:   prefs.KeyHearings,
		prefs.KindHearingRescheduled: prefs.KeyHearings,
		prefs.KindHearingCanceled:    prefs.KeyHearings,
		prefs.KindFloorCalendar:      prefs.KeyCalendars,
		prefs.KindCommitteeCalendar:  prefs.KeyCalendars,
	}
	for kind, want := range wantKeys {
		key, _, ok := m.Lookup(kind)
		require.True(t, ok, "kind %s missing from table", kind)
		assert.Equal(t, want, key, "kind %s", kind)
	}
}

func TestDefaultKindMapChamberFlags(t *testing.T) {
	t.Parallel()

	m := prefs.MustDefaultKindMap()

	_, filtered, ok := m.Lookup(prefs.KindFloorCalendar)
	require.True(t, ok)
	assert.True(t, filtered)

	_, filtered, ok = m.Lookup(prefs.KindCommitteeCalendar)
	require.True(t, ok)
	assert.True(t, filtered)

	_, filtered, ok = m.Lookup(prefs.KindBillIntroduced)
	require.True(t, ok)
	assert.False(t, filtered)
}

func TestLookupUnknownKind(t *testing.T) {
	t.Parallel()

	m := prefs.MustDefaultKindMap()
	_, _, ok := m.Lookup(prefs.Kind("no_such_kind"))
	assert.False(t, ok)
}

func TestLoadKindMapRejectsBadTables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not yaml", raw: "{{{"},
		{name: "missing version", raw: "kinds:\n  bill_introduced:\n    key: bills\n"},
		{name: "no kinds", raw: "version: 2\n"},
		{name: "kind without key", raw: "version: 2\nkinds:\n  bill_introduced: {}\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := prefs.LoadKindMap([]byte(tt.raw))
			require.ErrorIs(t, err, prefs.ErrInvalidMapping)
		})
	}
}
