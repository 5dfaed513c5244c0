package game

import "errors"

// ErrNondeterministic is the panic value of RandomStoneID.
var ErrNondeterministic = errors.New("game: random stone ids are not allowed; derive ids with rules.StoneID(actionID, plyIndex)")

// RandomStoneID used to mint stone ids from a random source. Ids must now be
// derived from the action id and ply index, so any remaining caller fails
// loudly instead of silently breaking replays.
func RandomStoneID() string {
	panic(ErrNondeterministic)
}
