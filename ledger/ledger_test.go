package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reputation-chain/models"
)

func fiveTxs() []string {
	return []string{"t1", "t2", "t3", "t4", "t5"}
}

func TestNew_StartsWithGenesis(t *testing.T) {
	l := New(5)

	require.Equal(t, 1, l.Len())
	g := l.Last()
	assert.Equal(t, models.GenesisPreviousHash, g.PreviousHash)
	assert.Equal(t, models.GenesisProposer, g.Proposer)
	assert.Equal(t, Genesis().Hash, g.Hash, "genesis must be fixed")
}

func TestValidate(t *testing.T) {
	l := New(5)
	tip := l.Last().Hash

	assert.NoError(t, l.Validate(models.NewBlock(fiveTxs(), tip, "N1", 1, 1)))
	assert.ErrorIs(t, l.Validate(models.NewBlock(fiveTxs()[:4], tip, "N1", 1, 1)), ErrTransactionCount)
	assert.ErrorIs(t, l.Validate(models.NewBlock(fiveTxs(), "bogus", "N1", 1, 1)), ErrPreviousHash)
	assert.Error(t, l.Validate(nil))
}

func TestIsValid_HasNoSideEffects(t *testing.T) {
	l := New(5)
	b := models.NewBlock(fiveTxs(), l.Last().Hash, "N1", 1, 1)

	assert.True(t, l.IsValid(b))
	assert.True(t, l.IsValid(b))
	assert.Equal(t, 1, l.Len())
}

func TestAppend_ChainsBlocks(t *testing.T) {
	l := New(5)
	b1 := models.NewBlock(fiveTxs(), l.Last().Hash, "N1", 1, 1)
	require.True(t, l.IsValid(b1))
	l.Append(b1)

	// b1 is no longer valid once it is the tip's parent
	assert.False(t, l.IsValid(b1))

	b2 := models.NewBlock(fiveTxs(), b1.Hash, "N2", 2, 2)
	require.True(t, l.IsValid(b2))
	l.Append(b2)

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, b2, l.Last())

	got, ok := l.BlockByHash(b1.Hash)
	require.True(t, ok)
	assert.Equal(t, b1, got)

	blocks := l.Blocks()
	for i := 1; i < len(blocks); i++ {
		assert.Equal(t, blocks[i-1].Hash, blocks[i].PreviousHash)
	}
}
