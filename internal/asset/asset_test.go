package asset

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/dgpv/bsst/internal/value"
)

// testEngine is the narrow Engine implementation these tests drive: an
// arena plus a fixed packet, mirroring the shape internal/opcode's
// ctxAssetEngine adapts a real context.Context into.
type testEngine struct {
	arena  *value.Arena
	packet *Packet
}

func (e *testEngine) Arena() *value.Arena { return e.arena }
func (e *testEngine) Packet() *Packet     { return e.packet }

func newTestEngine(p *Packet) *testEngine {
	return &testEngine{arena: value.NewArena(), packet: p}
}

func mustHash(t *testing.T, b byte) chainhash.Hash {
	t.Helper()
	var h chainhash.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func makeTestPacket(t *testing.T) *Packet {
	t.Helper()

	assetTxid := mustHash(t, 0x01)
	controlTxid := mustHash(t, 0xa1)
	intentTxid := mustHash(t, 0xf1)
	metadataHash := mustHash(t, 0xde)

	controlID := ID{Txid: controlTxid, Gidx: 1}

	return &Packet{
		Groups: []Group{
			{
				AssetID:      ID{Txid: assetTxid, Gidx: 0},
				Control:      &controlID,
				MetadataHash: metadataHash,
				Inputs: []Input{
					{Type: InputTypeLocal, InputIndex: 0, Amount: 1000},
					{Type: InputTypeIntent, Txid: intentTxid, OutputIndex: 2, Amount: 500},
				},
				Outputs: []Output{
					{Type: OutputTypeLocal, OutputIndex: 0, Amount: 800},
					{Type: OutputTypeIntent, OutputIndex: 1, Amount: 700},
				},
			},
			{
				AssetID: ID{Txid: controlTxid, Gidx: 1},
				Control: nil,
				Inputs: []Input{
					{Type: InputTypeLocal, InputIndex: 1, Amount: 200},
				},
				Outputs: []Output{
					{Type: OutputTypeLocal, OutputIndex: 2, Amount: 200},
				},
			},
		},
		InputAssets: map[uint32][]InputEntry{
			0: {{AssetID: ID{Txid: assetTxid, Gidx: 0}, Amount: 1000}},
			1: {{AssetID: ID{Txid: controlTxid, Gidx: 1}, Amount: 200}},
		},
		OutputAssets: map[uint32][]OutputEntry{
			0: {{AssetID: ID{Txid: assetTxid, Gidx: 0}, Amount: 800}},
			1: {{AssetID: ID{Txid: assetTxid, Gidx: 0}, Amount: 700}},
			2: {{AssetID: ID{Txid: controlTxid, Gidx: 1}, Amount: 200}},
		},
	}
}

func collectPushes(fn func(push func(value.Value)) error) ([]value.Value, error) {
	var out []value.Value
	err := fn(func(v value.Value) { out = append(out, v) })
	return out, err
}

func bytesOf(t *testing.T, v value.Value) []byte {
	t.Helper()
	b, ok := v.Bytes()
	require.True(t, ok, "expected a statically known literal")
	return b
}

func TestNumAssetGroups(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(makeTestPacket(t))
	pushed, err := collectPushes(func(push func(value.Value)) error {
		return NumAssetGroups(eng, push)
	})
	require.NoError(t, err)
	require.Len(t, pushed, 1)
	require.Equal(t, []byte{0x02}, bytesOf(t, pushed[0]))
}

func TestNumAssetGroupsRequiresPacket(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(nil)
	_, err := collectPushes(func(push func(value.Value)) error {
		return NumAssetGroups(eng, push)
	})
	require.Error(t, err)
}

func TestGroupAssetID(t *testing.T) {
	t.Parallel()

	p := makeTestPacket(t)
	eng := newTestEngine(p)

	pushed, err := collectPushes(func(push func(value.Value)) error {
		return GroupAssetID(eng, 0, push)
	})
	require.NoError(t, err)
	require.Len(t, pushed, 2)
	require.Equal(t, p.Groups[0].AssetID.Txid[:], bytesOf(t, pushed[0]))
	require.Nil(t, bytesOf(t, pushed[1]), "zero encodes as the empty byte string")
}

func TestGroupAssetIDOutOfRange(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(makeTestPacket(t))
	_, err := collectPushes(func(push func(value.Value)) error {
		return GroupAssetID(eng, 5, push)
	})
	require.Error(t, err)
}

func TestGroupCtrlWithAndWithoutControl(t *testing.T) {
	t.Parallel()

	p := makeTestPacket(t)
	eng := newTestEngine(p)

	pushed, err := collectPushes(func(push func(value.Value)) error {
		return GroupCtrl(eng, 0, push)
	})
	require.NoError(t, err)
	require.Len(t, pushed, 2)
	require.Equal(t, p.Groups[0].Control.Txid[:], bytesOf(t, pushed[0]))

	pushed, err = collectPushes(func(push func(value.Value)) error {
		return GroupCtrl(eng, 1, push)
	})
	require.NoError(t, err)
	require.Len(t, pushed, 1)
	require.Equal(t, []byte{0x81}, bytesOf(t, pushed[0]), "no control must push -1")
}

func TestFindGroupByAssetID(t *testing.T) {
	t.Parallel()

	p := makeTestPacket(t)
	eng := newTestEngine(p)

	found, err := collectPushes(func(push func(value.Value)) error {
		return FindGroupByAssetID(eng, p.Groups[0].AssetID, push)
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Nil(t, bytesOf(t, found[0]), "zero encodes as the empty byte string")

	notFound, err := collectPushes(func(push func(value.Value)) error {
		return FindGroupByAssetID(eng, ID{}, push)
	})
	require.NoError(t, err)
	require.Len(t, notFound, 1)
	require.Equal(t, []byte{0x81}, bytesOf(t, notFound[0]))
}

func TestGroupNumSources(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(makeTestPacket(t))

	inputs, err := collectPushes(func(push func(value.Value)) error {
		return GroupNum(eng, 0, 0, push)
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x02}, bytesOf(t, inputs[0]))

	outputs, err := collectPushes(func(push func(value.Value)) error {
		return GroupNum(eng, 0, 1, push)
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x02}, bytesOf(t, outputs[0]))

	both, err := collectPushes(func(push func(value.Value)) error {
		return GroupNum(eng, 0, 2, push)
	})
	require.NoError(t, err)
	require.Len(t, both, 2)

	_, err = collectPushes(func(push func(value.Value)) error {
		return GroupNum(eng, 0, 9, push)
	})
	require.Error(t, err)
}

func TestGroupEntryLocalInput(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(makeTestPacket(t))

	pushed, err := collectPushes(func(push func(value.Value)) error {
		return GroupEntry(eng, 0, 0, 0, push)
	})
	require.NoError(t, err)
	require.Len(t, pushed, 3)
	require.Equal(t, []byte{byte(InputTypeLocal)}, bytesOf(t, pushed[0]))
	require.Nil(t, bytesOf(t, pushed[1]), "zero encodes as the empty byte string")

	le64, ok := pushed[2].LE64()
	require.True(t, ok)
	require.Equal(t, uint64(1000), le64)
}

func TestGroupEntryIntentInput(t *testing.T) {
	t.Parallel()

	p := makeTestPacket(t)
	eng := newTestEngine(p)

	pushed, err := collectPushes(func(push func(value.Value)) error {
		return GroupEntry(eng, 0, 1, 0, push)
	})
	require.NoError(t, err)
	require.Len(t, pushed, 4, "intent inputs carry a txid+output_index in addition to type and amount")
	require.Equal(t, []byte{byte(InputTypeIntent)}, bytesOf(t, pushed[0]))
	require.Equal(t, p.Groups[0].Inputs[1].Txid[:], bytesOf(t, pushed[1]))
}

func TestGroupEntryOutOfRange(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(makeTestPacket(t))
	_, err := collectPushes(func(push func(value.Value)) error {
		return GroupEntry(eng, 0, 9, 0, push)
	})
	require.Error(t, err)
}

func TestGroupSum(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(makeTestPacket(t))

	pushed, err := collectPushes(func(push func(value.Value)) error {
		return GroupSum(eng, 0, 0, push)
	})
	require.NoError(t, err)
	v, ok := pushed[0].LE64()
	require.True(t, ok)
	require.Equal(t, uint64(1500), v)

	pushed, err = collectPushes(func(push func(value.Value)) error {
		return GroupSum(eng, 0, 1, push)
	})
	require.NoError(t, err)
	v, ok = pushed[0].LE64()
	require.True(t, ok)
	require.Equal(t, uint64(1500), v)
}

func TestOutAssetLookup(t *testing.T) {
	t.Parallel()

	p := makeTestPacket(t)
	eng := newTestEngine(p)

	found, err := collectPushes(func(push func(value.Value)) error {
		return OutAssetLookup(eng, 0, p.Groups[0].AssetID, push)
	})
	require.NoError(t, err)
	v, ok := found[0].LE64()
	require.True(t, ok)
	require.Equal(t, uint64(800), v)

	notFound, err := collectPushes(func(push func(value.Value)) error {
		return OutAssetLookup(eng, 0, ID{Gidx: 9}, push)
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x81}, bytesOf(t, notFound[0]))
}

func TestInAssetLookup(t *testing.T) {
	t.Parallel()

	p := makeTestPacket(t)
	eng := newTestEngine(p)

	found, err := collectPushes(func(push func(value.Value)) error {
		return InAssetLookup(eng, 0, p.Groups[0].AssetID, push)
	})
	require.NoError(t, err)
	v, ok := found[0].LE64()
	require.True(t, ok)
	require.Equal(t, uint64(1000), v)
}

func TestGroupIntentOutCountAndEntry(t *testing.T) {
	t.Parallel()

	p := makeTestPacket(t)
	eng := newTestEngine(p)

	count, err := collectPushes(func(push func(value.Value)) error {
		return GroupIntentOutCount(eng, 0, push)
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, bytesOf(t, count[0]))

	zero, err := collectPushes(func(push func(value.Value)) error {
		return GroupIntentOutCount(eng, 1, push)
	})
	require.NoError(t, err)
	require.Nil(t, bytesOf(t, zero[0]), "zero encodes as the empty byte string")

	entry, err := collectPushes(func(push func(value.Value)) error {
		return GroupIntentOut(eng, 0, 0, push)
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, bytesOf(t, entry[0]), "expected output_index 1")

	_, err = collectPushes(func(push func(value.Value)) error {
		return GroupIntentOut(eng, 0, 5, push)
	})
	require.Error(t, err)
}

func TestGroupIntentInCountAndEntry(t *testing.T) {
	t.Parallel()

	p := makeTestPacket(t)
	eng := newTestEngine(p)

	count, err := collectPushes(func(push func(value.Value)) error {
		return GroupIntentInCount(eng, 0, push)
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, bytesOf(t, count[0]))

	entry, err := collectPushes(func(push func(value.Value)) error {
		return GroupIntentIn(eng, 0, 0, push)
	})
	require.NoError(t, err)
	require.Len(t, entry, 3)
	require.Equal(t, p.Groups[0].Inputs[1].Txid[:], bytesOf(t, entry[0]))

	_, err = collectPushes(func(push func(value.Value)) error {
		return GroupIntentIn(eng, 0, 5, push)
	})
	require.Error(t, err)
}
