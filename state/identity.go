package state

// Node is an opaque node identifier, globally unique within the network.
type Node string

// Area is an opaque link-state area identifier.
type Area string
