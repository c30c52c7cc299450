package asset

import (
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// jsonID mirrors ID with the txid in the reversed-byte hex string every
// other Bitcoin/Elements tool displays it in (chainhash.Hash.String's
// convention), rather than asking the packet file author to write raw
// internal byte order.
type jsonID struct {
	Txid string `json:"txid"`
	Gidx uint16 `json:"gidx"`
}

type jsonInput struct {
	Type        InputType `json:"type"`
	InputIndex  uint32    `json:"input_index,omitempty"`
	Txid        string    `json:"txid,omitempty"`
	OutputIndex uint32    `json:"output_index,omitempty"`
	Amount      uint64    `json:"amount"`
}

type jsonOutput struct {
	Type        OutputType `json:"type"`
	OutputIndex uint32     `json:"output_index"`
	Amount      uint64     `json:"amount"`
}

type jsonGroup struct {
	AssetID      jsonID      `json:"asset_id"`
	Control      *jsonID     `json:"control,omitempty"`
	MetadataHash string      `json:"metadata_hash"`
	Inputs       []jsonInput `json:"inputs,omitempty"`
	Outputs      []jsonOutput `json:"outputs,omitempty"`
}

type jsonEntry struct {
	AssetID jsonID `json:"asset_id"`
	Amount  uint64 `json:"amount"`
}

type jsonPacket struct {
	Groups       []jsonGroup            `json:"groups,omitempty"`
	InputAssets  map[string][]jsonEntry `json:"input_assets,omitempty"`
	OutputAssets map[string][]jsonEntry `json:"output_assets,omitempty"`
}

func parseHash(s string) (chainhash.Hash, error) {
	if s == "" {
		return chainhash.Hash{}, nil
	}
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return *h, nil
}

func (j jsonID) toID() (ID, error) {
	h, err := parseHash(j.Txid)
	if err != nil {
		return ID{}, fmt.Errorf("asset id txid: %w", err)
	}
	return ID{Txid: h, Gidx: j.Gidx}, nil
}

// ParsePacket decodes a JSON-encoded asset packet: the whole content of the
// file named by --asset-packet-file.
func ParsePacket(data []byte) (*Packet, error) {
	var jp jsonPacket
	if err := json.Unmarshal(data, &jp); err != nil {
		return nil, fmt.Errorf("decoding asset packet: %w", err)
	}

	p := &Packet{
		InputAssets:  make(map[uint32][]InputEntry),
		OutputAssets: make(map[uint32][]OutputEntry),
	}

	for _, jg := range jp.Groups {
		g := Group{}
		aid, err := jg.AssetID.toID()
		if err != nil {
			return nil, err
		}
		g.AssetID = aid
		if jg.Control != nil {
			cid, err := jg.Control.toID()
			if err != nil {
				return nil, err
			}
			g.Control = &cid
		}
		mh, err := parseHash(jg.MetadataHash)
		if err != nil {
			return nil, fmt.Errorf("asset group metadata hash: %w", err)
		}
		g.MetadataHash = mh
		for _, ji := range jg.Inputs {
			txid, err := parseHash(ji.Txid)
			if err != nil {
				return nil, fmt.Errorf("asset group input txid: %w", err)
			}
			g.Inputs = append(g.Inputs, Input{
				Type:        ji.Type,
				InputIndex:  ji.InputIndex,
				Txid:        txid,
				OutputIndex: ji.OutputIndex,
				Amount:      ji.Amount,
			})
		}
		for _, jo := range jg.Outputs {
			g.Outputs = append(g.Outputs, Output{
				Type:        jo.Type,
				OutputIndex: jo.OutputIndex,
				Amount:      jo.Amount,
			})
		}
		p.Groups = append(p.Groups, g)
	}

	for idxStr, entries := range jp.InputAssets {
		idx, err := parseUint32(idxStr)
		if err != nil {
			return nil, fmt.Errorf("input_assets key %q: %w", idxStr, err)
		}
		for _, e := range entries {
			aid, err := e.AssetID.toID()
			if err != nil {
				return nil, err
			}
			p.InputAssets[idx] = append(p.InputAssets[idx], InputEntry{AssetID: aid, Amount: e.Amount})
		}
	}
	for idxStr, entries := range jp.OutputAssets {
		idx, err := parseUint32(idxStr)
		if err != nil {
			return nil, fmt.Errorf("output_assets key %q: %w", idxStr, err)
		}
		for _, e := range entries {
			aid, err := e.AssetID.toID()
			if err != nil {
				return nil, err
			}
			p.OutputAssets[idx] = append(p.OutputAssets[idx], OutputEntry{AssetID: aid, Amount: e.Amount})
		}
	}

	return p, nil
}

func parseUint32(s string) (uint32, error) {
	var v uint32
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}
