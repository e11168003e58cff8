package state

// KeyVal is one key/value pair of an LSDB publication, as replicated by the
// (external) KV-store layer.
type KeyVal struct {
	Value      []byte
	TtlVersion int64
}

// LsdbPublication is a batch of KV-store puts plus expirations, scoped to a
// single area. Key formats:
//
//	adj:<node>                 -- serialized AdjacencyDatabase
//	prefix:<node>               -- serialized PrefixDatabase (full replace)
//	prefix:<node>:<prefix-key>  -- serialized PrefixEntry (single-entry update)
//	fibTime:<node>              -- ASCII integer ms
type LsdbPublication struct {
	Area        Area
	KeyVals     map[string]KeyVal
	ExpiredKeys []string
	PerfEvents  []PerfEvent
}

// StaticMplsRoute is one statically-configured MPLS route, supplied
// out-of-band from the LSDB (e.g. by a local policy or redistribution
// process).
type StaticMplsRoute struct {
	TopLabel uint32
	Nexthops *NextHopSet
}

// StaticRouteDelta is one batch of static MPLS route changes. Across
// batches accumulated between debounce fires, updates and deletes for the
// same label squash monotonically: the later of an update/delete pair wins.
// Within one batch, a delete for a label takes precedence over an update
// for it.
type StaticRouteDelta struct {
	MplsRoutesToUpdate []StaticMplsRoute
	MplsRoutesToDelete []uint32
}
