package asset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePacketRoundTripsGroupsAndEntries(t *testing.T) {
	t.Parallel()

	txidHex := "0101010101010101010101010101010101010101010101010101010101010101"[:64]
	metadataHex := "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"

	doc := []byte(`{
		"groups": [
			{
				"asset_id": {"txid": "` + txidHex + `", "gidx": 0},
				"metadata_hash": "` + metadataHex + `",
				"inputs": [
					{"type": 1, "input_index": 0, "amount": 1000}
				],
				"outputs": [
					{"type": 1, "output_index": 0, "amount": 1000}
				]
			}
		],
		"input_assets": {
			"0": [{"asset_id": {"txid": "` + txidHex + `", "gidx": 0}, "amount": 1000}]
		},
		"output_assets": {
			"0": [{"asset_id": {"txid": "` + txidHex + `", "gidx": 0}, "amount": 1000}]
		}
	}`)

	p, err := ParsePacket(doc)
	require.NoError(t, err)
	require.Len(t, p.Groups, 1)
	require.Equal(t, uint16(0), p.Groups[0].AssetID.Gidx)
	require.Len(t, p.Groups[0].Inputs, 1)
	require.Equal(t, InputTypeLocal, p.Groups[0].Inputs[0].Type)
	require.Equal(t, uint64(1000), p.Groups[0].Inputs[0].Amount)

	require.Len(t, p.InputAssets[0], 1)
	require.Equal(t, p.Groups[0].AssetID, p.InputAssets[0][0].AssetID)

	require.Len(t, p.OutputAssets[0], 1)
}

func TestParsePacketEmptyDocument(t *testing.T) {
	t.Parallel()

	p, err := ParsePacket([]byte(`{}`))
	require.NoError(t, err)
	require.Empty(t, p.Groups)
}

func TestParsePacketInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := ParsePacket([]byte(`not json`))
	require.Error(t, err)
}

func TestParsePacketBadTxidHex(t *testing.T) {
	t.Parallel()

	doc := []byte(`{"groups": [{"asset_id": {"txid": "not-hex", "gidx": 0}, "metadata_hash": ""}]}`)
	_, err := ParsePacket(doc)
	require.Error(t, err)
}

func TestParsePacketControlGroup(t *testing.T) {
	t.Parallel()

	assetTxid := "0101010101010101010101010101010101010101010101010101010101010101"[:64]
	controlTxid := "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1"[:64]

	doc := []byte(`{
		"groups": [
			{
				"asset_id": {"txid": "` + assetTxid + `", "gidx": 0},
				"control": {"txid": "` + controlTxid + `", "gidx": 1},
				"metadata_hash": ""
			}
		]
	}`)

	p, err := ParsePacket(doc)
	require.NoError(t, err)
	require.NotNil(t, p.Groups[0].Control)
	require.Equal(t, uint16(1), p.Groups[0].Control.Gidx)
}
