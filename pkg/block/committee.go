package block

// Authority is one committee member's static identity: its voting weight
// and its protocol (block-signing) public key.
type Authority struct {
	Stake       uint64
	ProtocolKey []byte
}

// Committee is the fixed, epoch-scoped set of authorities. Membership and
// stake never change within an epoch; a new epoch gets a new Committee.
type Committee struct {
	Authorities []Authority
}

// NewCommittee builds a Committee from authority weights, in index order.
func NewCommittee(authorities []Authority) Committee {
	return Committee{Authorities: authorities}
}

// Size returns the number of authorities.
func (c Committee) Size() int {
	return len(c.Authorities)
}

// TotalStake sums the committee's voting weight.
func (c Committee) TotalStake() uint64 {
	var total uint64
	for _, a := range c.Authorities {
		total += a.Stake
	}
	return total
}

// QuorumThreshold is the stake needed for a Byzantine quorum: strictly
// more than 2/3 of total stake.
func (c Committee) QuorumThreshold() uint64 {
	return 2*c.TotalStake()/3 + 1
}

// StakeOf returns the stake of the given authority, or 0 if out of range.
func (c Committee) StakeOf(a AuthorityIndex) uint64 {
	if int(a) < 0 || int(a) >= len(c.Authorities) {
		return 0
	}
	return c.Authorities[a].Stake
}

// IsQuorum reports whether the given set of authorities, weighted by
// stake, meets the committee's quorum threshold.
func (c Committee) IsQuorum(authorities []AuthorityIndex) bool {
	seen := make(map[AuthorityIndex]bool, len(authorities))
	var stake uint64
	for _, a := range authorities {
		if seen[a] {
			continue
		}
		seen[a] = true
		stake += c.StakeOf(a)
	}
	return stake >= c.QuorumThreshold()
}
