package state

// Pair is a small generic tuple, used where a one-off struct isn't worth naming.
type Pair[Ty1, Ty2 any] struct {
	V1 Ty1
	V2 Ty2
}
