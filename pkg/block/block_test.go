package block

import "testing"

func TestNewVerifiedBlockGenesis(t *testing.T) {
	vb, err := NewVerifiedBlock(BlockData{Round: 0, Author: 0})
	if err != nil {
		t.Fatalf("NewVerifiedBlock() error = %v", err)
	}
	if vb.Round() != 0 {
		t.Errorf("Round() = %d, want 0", vb.Round())
	}
	if len(vb.Ancestors()) != 0 {
		t.Errorf("Ancestors() = %v, want empty", vb.Ancestors())
	}
}

func TestNewVerifiedBlockRejectsGenesisWithAncestors(t *testing.T) {
	_, err := NewVerifiedBlock(BlockData{
		Round:     0,
		Author:    0,
		Ancestors: []BlockRef{{Round: 0, Author: 1}},
	})
	if err == nil {
		t.Fatal("expected error for genesis block with ancestors")
	}
}

func TestNewVerifiedBlockRejectsMissingImmediateParent(t *testing.T) {
	_, err := NewVerifiedBlock(BlockData{
		Round:     2,
		Author:    0,
		Ancestors: []BlockRef{{Round: 0, Author: 1}},
	})
	if err == nil {
		t.Fatal("expected error for block missing a round-1 parent")
	}
}

func TestNewVerifiedBlockRejectsFutureAncestor(t *testing.T) {
	_, err := NewVerifiedBlock(BlockData{
		Round:     1,
		Author:    0,
		Ancestors: []BlockRef{{Round: 1, Author: 1}},
	})
	if err == nil {
		t.Fatal("expected error for ancestor at or above block round")
	}
}

func TestDigestStableAcrossEqualData(t *testing.T) {
	data := BlockData{
		Round:        1,
		Author:       0,
		Ancestors:    []BlockRef{{Round: 0, Author: 0}, {Round: 0, Author: 1}},
		Transactions: [][]byte{[]byte("tx-a"), []byte("tx-b")},
	}
	a, err := NewVerifiedBlock(data)
	if err != nil {
		t.Fatalf("NewVerifiedBlock() error = %v", err)
	}
	b, err := NewVerifiedBlock(data)
	if err != nil {
		t.Fatalf("NewVerifiedBlock() error = %v", err)
	}
	if !a.Digest().Equal(b.Digest()) {
		t.Errorf("digests differ for identical block data: %s vs %s", a.Digest(), b.Digest())
	}
}

func TestDigestChangesWithTransactions(t *testing.T) {
	base := BlockData{Round: 1, Author: 0, Ancestors: []BlockRef{{Round: 0, Author: 0}}}
	withTx := base
	withTx.Transactions = [][]byte{[]byte("tx")}

	a, err := NewVerifiedBlock(base)
	if err != nil {
		t.Fatalf("NewVerifiedBlock() error = %v", err)
	}
	b, err := NewVerifiedBlock(withTx)
	if err != nil {
		t.Fatalf("NewVerifiedBlock() error = %v", err)
	}
	if a.Digest().Equal(b.Digest()) {
		t.Error("digests should differ once transactions are added")
	}
}

func TestRoundTripSerialization(t *testing.T) {
	data := BlockData{
		Round:        3,
		Author:       2,
		TimestampMs:  1700000000000,
		Ancestors:    []BlockRef{{Round: 2, Author: 0}, {Round: 2, Author: 1}},
		Transactions: [][]byte{[]byte("a"), {}, []byte("ccc")},
	}
	original, err := NewVerifiedBlock(data)
	if err != nil {
		t.Fatalf("NewVerifiedBlock() error = %v", err)
	}

	roundTripped, err := DeserializeBlock(original.Serialized())
	if err != nil {
		t.Fatalf("DeserializeBlock() error = %v", err)
	}
	if !roundTripped.Digest().Equal(original.Digest()) {
		t.Errorf("round-tripped digest = %s, want %s", roundTripped.Digest(), original.Digest())
	}
	if roundTripped.Round() != original.Round() || roundTripped.Author() != original.Author() {
		t.Error("round-tripped block lost round/author identity")
	}
	if len(roundTripped.Transactions()) != len(data.Transactions) {
		t.Errorf("round-tripped transaction count = %d, want %d", len(roundTripped.Transactions()), len(data.Transactions))
	}
}

func TestGenesisBlocksOnePerAuthority(t *testing.T) {
	blocks, err := GenesisBlocks(4)
	if err != nil {
		t.Fatalf("GenesisBlocks() error = %v", err)
	}
	if len(blocks) != 4 {
		t.Fatalf("GenesisBlocks() returned %d blocks, want 4", len(blocks))
	}
	seen := make(map[AuthorityIndex]bool)
	for _, b := range blocks {
		if b.Round() != 0 {
			t.Errorf("genesis block round = %d, want 0", b.Round())
		}
		seen[b.Author()] = true
	}
	if len(seen) != 4 {
		t.Errorf("expected 4 distinct authors, got %d", len(seen))
	}
}
