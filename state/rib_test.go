package state

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnicastRoute_EqualComparesNexthopsAsSet(t *testing.T) {
	pfx := netip.MustParsePrefix("10.0.0.0/24")
	a := &UnicastRoute{Prefix: pfx, Nexthops: NewNextHopSet(
		NextHop{Addr: netip.MustParseAddr("1.1.1.1")},
		NextHop{Addr: netip.MustParseAddr("2.2.2.2")},
	)}
	b := &UnicastRoute{Prefix: pfx, Nexthops: NewNextHopSet(
		NextHop{Addr: netip.MustParseAddr("2.2.2.2")},
		NextHop{Addr: netip.MustParseAddr("1.1.1.1")},
	)}
	assert.True(t, a.Equal(b), "next-hop order must not affect equality")
}

func TestUnicastRoute_EqualDiffersOnDoNotInstall(t *testing.T) {
	pfx := netip.MustParsePrefix("10.0.0.0/24")
	a := &UnicastRoute{Prefix: pfx, Nexthops: NewNextHopSet()}
	b := &UnicastRoute{Prefix: pfx, Nexthops: NewNextHopSet(), DoNotInstall: true}
	assert.False(t, a.Equal(b))
}

func TestUnicastRoute_EqualNilHandling(t *testing.T) {
	var a, b *UnicastRoute
	assert.True(t, a.Equal(b), "two nil routes are equal")
	c := &UnicastRoute{}
	assert.False(t, a.Equal(c))
	assert.False(t, c.Equal(a))
}

func TestMplsRoute_EqualComparesLabelAndNexthops(t *testing.T) {
	a := &MplsRoute{TopLabel: 100, Nexthops: NewNextHopSet(NextHop{Addr: netip.MustParseAddr("1.1.1.1")})}
	b := &MplsRoute{TopLabel: 100, Nexthops: NewNextHopSet(NextHop{Addr: netip.MustParseAddr("1.1.1.1")})}
	c := &MplsRoute{TopLabel: 200, Nexthops: NewNextHopSet(NextHop{Addr: netip.MustParseAddr("1.1.1.1")})}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestNewRouteDb_InitializesEmptyMaps(t *testing.T) {
	rdb := NewRouteDb("A")
	assert.Equal(t, Node("A"), rdb.ThisNode)
	assert.NotNil(t, rdb.UnicastRoutes)
	assert.NotNil(t, rdb.MplsRoutes)
	assert.Empty(t, rdb.UnicastRoutes)
	assert.Empty(t, rdb.MplsRoutes)
}
