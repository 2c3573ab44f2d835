package gossip

import "github.com/chrysalis/gossip-mesh/pkg/gossipid"

// Identifier distinguishes independent gossip streams coexisting within one
// shell. Equality and hashing derive solely from its string form.
type Identifier = gossipid.Identifier

// NewIdentifier canonicalizes s into an Identifier.
func NewIdentifier(s string) Identifier {
	return gossipid.Of(s)
}
