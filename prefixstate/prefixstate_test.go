package prefixstate

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsdecision/decision/state"
)

func TestUpdateFullPrefixDatabase_ReplacesAndReportsChange(t *testing.T) {
	s := New()
	pfx := netip.MustParsePrefix("10.0.0.0/24")
	changed := s.UpdateFullPrefixDatabase(state.PrefixDatabase{
		ThisNode: "A", Prefixes: map[netip.Prefix]state.PrefixEntry{pfx: {Type: state.PrefixOther}},
	})
	assert.True(t, changed, "expected a change on first population")
	advertisers := s.Prefixes()[pfx]
	assert.Contains(t, advertisers, state.Node("A"))

	changed = s.UpdateFullPrefixDatabase(state.PrefixDatabase{
		ThisNode: "A", Prefixes: map[netip.Prefix]state.PrefixEntry{pfx: {Type: state.PrefixOther}},
	})
	assert.False(t, changed, "re-publishing an identical full database must report no change")
}

func TestPerPrefixOverride_WinsOverFullDb(t *testing.T) {
	s := New()
	pfx := netip.MustParsePrefix("10.0.0.0/24")
	s.UpdateFullPrefixDatabase(state.PrefixDatabase{
		ThisNode: "A", Prefixes: map[netip.Prefix]state.PrefixEntry{pfx: {Type: state.PrefixOther}},
	})
	s.UpdatePrefixEntry("A", pfx, state.PrefixEntry{Type: state.PrefixBGP})

	entry := s.Prefixes()[pfx]["A"]
	assert.Equal(t, state.PrefixBGP, entry.Type, "per-prefix override must win")
}

func TestDeletePrefixEntry_FallsBackToFullDb(t *testing.T) {
	s := New()
	pfx := netip.MustParsePrefix("10.0.0.0/24")
	s.UpdateFullPrefixDatabase(state.PrefixDatabase{
		ThisNode: "A", Prefixes: map[netip.Prefix]state.PrefixEntry{pfx: {Type: state.PrefixOther}},
	})
	s.UpdatePrefixEntry("A", pfx, state.PrefixEntry{Type: state.PrefixBGP})
	changed := s.DeletePrefixEntry("A", pfx)
	assert.True(t, changed, "expected removing the override to report a change")
	entry := s.Prefixes()[pfx]["A"]
	assert.Equal(t, state.PrefixOther, entry.Type, "fall back to the full-db entry")
}

func TestDeleteNode_RemovesEveryPrefix(t *testing.T) {
	s := New()
	p1 := netip.MustParsePrefix("10.0.0.0/24")
	p2 := netip.MustParsePrefix("10.0.1.0/24")
	s.UpdateFullPrefixDatabase(state.PrefixDatabase{
		ThisNode: "A", Prefixes: map[netip.Prefix]state.PrefixEntry{
			p1: {Type: state.PrefixOther}, p2: {Type: state.PrefixOther},
		},
	})
	assert.True(t, s.DeleteNode("A"), "expected DeleteNode to report a change")
	assert.Empty(t, s.Prefixes()[p1])
	assert.Empty(t, s.Prefixes()[p2])
}

func TestGetLoopbackVias_FiltersByFamilyAndType(t *testing.T) {
	s := New()
	v4 := netip.MustParsePrefix("10.0.0.1/32")
	v6 := netip.MustParsePrefix("fd00::1/128")
	other := netip.MustParsePrefix("192.168.0.0/24")
	s.UpdateFullPrefixDatabase(state.PrefixDatabase{
		ThisNode: "A", Prefixes: map[netip.Prefix]state.PrefixEntry{
			v4:    {Type: state.PrefixLoopback},
			v6:    {Type: state.PrefixLoopback},
			other: {Type: state.PrefixOther},
		},
	})

	vias := s.GetLoopbackVias([]state.Node{"A"}, true, map[state.Node]uint32{"A": 7})
	require.Len(t, vias, 1, "expected exactly the v4 loopback")
	assert.Equal(t, v4.Addr(), vias[0].Addr)
	assert.EqualValues(t, 7, vias[0].Metric)
}

func TestPrefixDatabases_MergesFullAndOverrides(t *testing.T) {
	s := New()
	p1 := netip.MustParsePrefix("10.0.0.0/24")
	p2 := netip.MustParsePrefix("10.0.1.0/24")
	s.UpdateFullPrefixDatabase(state.PrefixDatabase{
		ThisNode: "A", Prefixes: map[netip.Prefix]state.PrefixEntry{p1: {Type: state.PrefixOther}},
	})
	s.UpdatePrefixEntry("A", p2, state.PrefixEntry{Type: state.PrefixBGP})

	dbs := s.PrefixDatabases()
	db, ok := dbs["A"]
	require.True(t, ok, "expected A's merged prefix database")
	assert.Len(t, db.Prefixes, 2, "one full-db, one per-prefix override")
}
