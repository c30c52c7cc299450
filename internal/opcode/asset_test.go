package opcode

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/dgpv/bsst/internal/asset"
	"github.com/dgpv/bsst/internal/context"
)

func testAssetPacket() *asset.Packet {
	var txid chainhash.Hash
	txid[0] = 0x01
	return &asset.Packet{
		Groups: []asset.Group{
			{AssetID: asset.ID{Txid: txid, Gidx: 0}},
		},
	}
}

func TestRegisterAssetAddsOpcodes(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerAsset(table)
	require.Contains(t, table, "OP_INSPECTNUMASSETGROUPS")
	require.Contains(t, table, "OP_INSPECTASSETGROUPASSETID")
	require.Contains(t, table, "OP_INSPECTOUTASSETLOOKUP")
}

func TestAssetOpRequiresIsElements(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerAsset(table)
	ctx, s := newCtx()
	s.AssetPacket = testAssetPacket()

	_, err := table["OP_INSPECTNUMASSETGROUPS"](ctx, s, context.Position{}, nil)
	require.NoError(t, err)
	require.True(t, ctx.Failed(), "must require --is-elements")
}

func TestInspectNumAssetGroupsPushesCount(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerAsset(table)
	ctx, s := newCtx()
	s.IsElements = true
	s.AssetPacket = testAssetPacket()

	_, err := table["OP_INSPECTNUMASSETGROUPS"](ctx, s, context.Position{}, nil)
	require.NoError(t, err)
	require.False(t, ctx.Failed())
	top, ok := ctx.Top()
	require.True(t, ok)
	b, _ := top.Bytes()
	require.Equal(t, []byte{0x01}, b)
}

func TestAssetOpKFailsOnSymbolicIndex(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerAsset(table)
	ctx, s := newCtx()
	s.IsElements = true
	s.AssetPacket = testAssetPacket()
	ctx.Push(ctx.NextWitness(), context.Position{})

	_, err := table["OP_INSPECTASSETGROUPASSETID"](ctx, s, context.Position{}, nil)
	require.NoError(t, err)
	require.True(t, ctx.Failed())
}

func TestAssetOpKOnEmptyStackDrawsAWitnessIndex(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerAsset(table)
	ctx, s := newCtx()
	s.IsElements = true
	s.AssetPacket = testAssetPacket()

	_, err := table["OP_INSPECTASSETGROUPASSETID"](ctx, s, context.Position{}, nil)
	require.NoError(t, err)
	require.True(t, ctx.Failed(), "a symbolic witness index is not a statically known script number")
	require.Equal(t, 1, ctx.WitnessUsed)
}

func TestInspectAssetGroupAssetIDWithStaticIndex(t *testing.T) {
	t.Parallel()

	table := Table{}
	registerAsset(table)
	ctx, s := newCtx()
	s.IsElements = true
	s.AssetPacket = testAssetPacket()
	ctx.Push(ctx.Arena.Lit(nil), context.Position{}) // index 0

	_, err := table["OP_INSPECTASSETGROUPASSETID"](ctx, s, context.Position{}, nil)
	require.NoError(t, err)
	require.False(t, ctx.Failed())
	require.Equal(t, 2, ctx.Depth(), "pushes txid and group index")
}
