// Package asset adapts the Arkade Asset V1 packet model from concrete
// witness-execution bookkeeping to the symbolic value algebra: the same
// AssetID/AssetGroup shape, but every function here pushes value.Value
// literals read from a fixed, harness-supplied Packet instead of mutating a
// concrete VM stack. Without a Packet every function returns an error.
package asset

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/dgpv/bsst/internal/errtag"
	"github.com/dgpv/bsst/internal/value"
)

// InputType and OutputType mirror AssetInputType/AssetOutputType.
type InputType byte

const (
	InputTypeLocal  InputType = 0x01
	InputTypeIntent InputType = 0x02
)

type OutputType byte

const (
	OutputTypeLocal  OutputType = 0x01
	OutputTypeIntent OutputType = 0x02
)

// ID identifies an asset by its genesis transaction and group index. Txid
// uses chainhash.Hash rather than a bare [32]byte so asset IDs print and
// JSON-(un)marshal with the same reversed-byte-order hex convention as any
// other txid in the stack, instead of inventing a second one.
type ID struct {
	Txid chainhash.Hash
	Gidx uint16
}

type Input struct {
	Type        InputType
	InputIndex  uint32
	Txid        chainhash.Hash
	OutputIndex uint32
	Amount      uint64
}

type Output struct {
	Type        OutputType
	OutputIndex uint32
	Amount      uint64
}

type Group struct {
	AssetID      ID
	Control      *ID
	MetadataHash chainhash.Hash
	Inputs       []Input
	Outputs      []Output
}

type InputEntry struct {
	AssetID ID
	Amount  uint64
}

type OutputEntry struct {
	AssetID ID
	Amount  uint64
}

// Packet is the concrete, optional harness-supplied asset packet. When nil,
// every function in this package returns an "asset packet not set" error;
// no symbolic form of the packet is modeled. Index arguments are concrete
// values (dynamic-stack-access fanout is reserved for
// PICK/ROLL/CHECKMULTISIG, not for asset-group indices).
type Packet struct {
	Groups       []Group
	InputAssets  map[uint32][]InputEntry
	OutputAssets map[uint32][]OutputEntry
}

// Engine is the narrow slice of execution context the asset opcodes need:
// an arena to build nodes in, and an optional concrete packet.
type Engine interface {
	Arena() *value.Arena
	Packet() *Packet
}

func pushAssetID(eng Engine, id ID, push func(value.Value)) {
	txid := append([]byte(nil), id.Txid[:]...)
	push(eng.Arena().Lit(txid))
	push(litUint(eng, uint64(id.Gidx)))
}

func litUint(eng Engine, v uint64) value.Value {
	var b []byte
	for v > 0 {
		b = append(b, byte(v&0xff))
		v >>= 8
	}
	if len(b) > 0 && b[len(b)-1]&0x80 != 0 {
		b = append(b, 0x00)
	}
	return eng.Arena().Lit(b)
}

func litLE64(eng Engine, v uint64) value.Value {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	return eng.Arena().Lit(buf)
}

func checkPacket(eng Engine) (*Packet, error) {
	p := eng.Packet()
	if p == nil {
		return nil, errtag.New(errtag.CheckOpcodeInvalid, "asset packet not set")
	}
	return p, nil
}

func checkGroupIndex(p *Packet, k int) error {
	if k < 0 || k >= len(p.Groups) {
		return errtag.WithOpcode("inspectassetgroup", "asset group index out of range")
	}
	return nil
}

// NumAssetGroups implements OP_INSPECTNUMASSETGROUPS: → K.
func NumAssetGroups(eng Engine, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	push(litUint(eng, uint64(len(p.Groups))))
	return nil
}

// GroupAssetID implements OP_INSPECTASSETGROUPASSETID: k → txid32 gidx_u16.
func GroupAssetID(eng Engine, k int, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	if err := checkGroupIndex(p, k); err != nil {
		return err
	}
	pushAssetID(eng, p.Groups[k].AssetID, push)
	return nil
}

// GroupCtrl implements OP_INSPECTASSETGROUPCTRL: k → txid32 gidx_u16 | -1.
func GroupCtrl(eng Engine, k int, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	if err := checkGroupIndex(p, k); err != nil {
		return err
	}
	ctrl := p.Groups[k].Control
	if ctrl == nil {
		push(eng.Arena().Lit([]byte{0x81})) // -1
		return nil
	}
	pushAssetID(eng, *ctrl, push)
	return nil
}

// FindGroupByAssetID implements OP_FINDASSETGROUPBYASSETID: txid32 gidx_u16 → k | -1.
func FindGroupByAssetID(eng Engine, id ID, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	for i, g := range p.Groups {
		if g.AssetID.Txid == id.Txid && g.AssetID.Gidx == id.Gidx {
			push(litUint(eng, uint64(i)))
			return nil
		}
	}
	push(eng.Arena().Lit([]byte{0x81}))
	return nil
}

// GroupMetadataHash implements OP_INSPECTASSETGROUPMETADATAHASH: k → hash32.
func GroupMetadataHash(eng Engine, k int, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	if err := checkGroupIndex(p, k); err != nil {
		return err
	}
	h := append([]byte(nil), p.Groups[k].MetadataHash[:]...)
	push(eng.Arena().Lit(h))
	return nil
}

// GroupNum implements OP_INSPECTASSETGROUPNUM: k source → count(s).
// source: 0=inputs, 1=outputs, 2=both.
func GroupNum(eng Engine, k, source int, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	if err := checkGroupIndex(p, k); err != nil {
		return err
	}
	g := p.Groups[k]
	switch source {
	case 0:
		push(litUint(eng, uint64(len(g.Inputs))))
	case 1:
		push(litUint(eng, uint64(len(g.Outputs))))
	case 2:
		push(litUint(eng, uint64(len(g.Inputs))))
		push(litUint(eng, uint64(len(g.Outputs))))
	default:
		return errtag.WithOpcode("inspectassetgroupnum", fmt.Sprintf("invalid source %d", source))
	}
	return nil
}

// GroupEntry implements OP_INSPECTASSETGROUP: k j source → fields...
// source: 0=input, 1=output.
func GroupEntry(eng Engine, k, j, source int, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	if err := checkGroupIndex(p, k); err != nil {
		return err
	}
	g := p.Groups[k]
	switch source {
	case 0:
		if j < 0 || j >= len(g.Inputs) {
			return errtag.WithOpcode("inspectassetgroup", "asset group input index out of range")
		}
		inp := g.Inputs[j]
		push(litUint(eng, uint64(inp.Type)))
		if inp.Type == InputTypeLocal {
			push(litUint(eng, uint64(inp.InputIndex)))
		} else {
			txid := append([]byte(nil), inp.Txid[:]...)
			push(eng.Arena().Lit(txid))
			push(litUint(eng, uint64(inp.OutputIndex)))
		}
		push(litLE64(eng, inp.Amount))
	case 1:
		if j < 0 || j >= len(g.Outputs) {
			return errtag.WithOpcode("inspectassetgroup", "asset group output index out of range")
		}
		out := g.Outputs[j]
		push(litUint(eng, uint64(out.Type)))
		push(litUint(eng, uint64(out.OutputIndex)))
		push(litLE64(eng, out.Amount))
	default:
		return errtag.WithOpcode("inspectassetgroup", fmt.Sprintf("invalid source %d", source))
	}
	return nil
}

// GroupSum implements OP_INSPECTASSETGROUPSUM: k source → sum(s).
func GroupSum(eng Engine, k, source int, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	if err := checkGroupIndex(p, k); err != nil {
		return err
	}
	g := p.Groups[k]
	var inSum, outSum uint64
	for _, inp := range g.Inputs {
		inSum += inp.Amount
	}
	for _, out := range g.Outputs {
		outSum += out.Amount
	}
	switch source {
	case 0:
		push(litLE64(eng, inSum))
	case 1:
		push(litLE64(eng, outSum))
	case 2:
		push(litLE64(eng, inSum))
		push(litLE64(eng, outSum))
	default:
		return errtag.WithOpcode("inspectassetgroupsum", fmt.Sprintf("invalid source %d", source))
	}
	return nil
}

// OutAssetCount implements OP_INSPECTOUTASSETCOUNT: o → n.
func OutAssetCount(eng Engine, o int, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	push(litUint(eng, uint64(len(p.OutputAssets[uint32(o)]))))
	return nil
}

// OutAssetAt implements OP_INSPECTOUTASSETAT: o t → txid32 gidx_u16 amount_u64.
func OutAssetAt(eng Engine, o, t int, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	entries := p.OutputAssets[uint32(o)]
	if t < 0 || t >= len(entries) {
		return errtag.WithOpcode("inspectoutassetat", "output asset index out of range")
	}
	e := entries[t]
	pushAssetID(eng, e.AssetID, push)
	push(litLE64(eng, e.Amount))
	return nil
}

// OutAssetLookup implements OP_INSPECTOUTASSETLOOKUP: o txid32 gidx_u16 → amount_u64 | -1.
func OutAssetLookup(eng Engine, o int, id ID, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	for _, e := range p.OutputAssets[uint32(o)] {
		if e.AssetID.Txid == id.Txid && e.AssetID.Gidx == id.Gidx {
			push(litLE64(eng, e.Amount))
			return nil
		}
	}
	push(eng.Arena().Lit([]byte{0x81}))
	return nil
}

// InAssetCount implements OP_INSPECTINASSETCOUNT: i → n.
func InAssetCount(eng Engine, i int, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	push(litUint(eng, uint64(len(p.InputAssets[uint32(i)]))))
	return nil
}

// InAssetAt implements OP_INSPECTINASSETAT: i t → txid32 gidx_u16 amount_u64.
func InAssetAt(eng Engine, i, t int, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	entries := p.InputAssets[uint32(i)]
	if t < 0 || t >= len(entries) {
		return errtag.WithOpcode("inspectinassetat", "input asset index out of range")
	}
	e := entries[t]
	pushAssetID(eng, e.AssetID, push)
	push(litLE64(eng, e.Amount))
	return nil
}

// InAssetLookup implements OP_INSPECTINASSETLOOKUP: i txid32 gidx_u16 → amount_u64 | -1.
func InAssetLookup(eng Engine, i int, id ID, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	for _, e := range p.InputAssets[uint32(i)] {
		if e.AssetID.Txid == id.Txid && e.AssetID.Gidx == id.Gidx {
			push(litLE64(eng, e.Amount))
			return nil
		}
	}
	push(eng.Arena().Lit([]byte{0x81}))
	return nil
}

// GroupIntentOutCount implements OP_INSPECTGROUPINTENTOUTCOUNT: k → n.
func GroupIntentOutCount(eng Engine, k int, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	if err := checkGroupIndex(p, k); err != nil {
		return err
	}
	count := 0
	for _, out := range p.Groups[k].Outputs {
		if out.Type == OutputTypeIntent {
			count++
		}
	}
	push(litUint(eng, uint64(count)))
	return nil
}

// GroupIntentOut implements OP_INSPECTGROUPINTENTOUT: k j → output_index_u32 amount_u64.
func GroupIntentOut(eng Engine, k, j int, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	if err := checkGroupIndex(p, k); err != nil {
		return err
	}
	idx := 0
	for _, out := range p.Groups[k].Outputs {
		if out.Type == OutputTypeIntent {
			if idx == j {
				push(litUint(eng, uint64(out.OutputIndex)))
				push(litLE64(eng, out.Amount))
				return nil
			}
			idx++
		}
	}
	return errtag.WithOpcode("inspectgroupintentout", "intent output index out of range")
}

// GroupIntentInCount implements OP_INSPECTGROUPINTENTINCOUNT: k → n.
func GroupIntentInCount(eng Engine, k int, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	if err := checkGroupIndex(p, k); err != nil {
		return err
	}
	count := 0
	for _, inp := range p.Groups[k].Inputs {
		if inp.Type == InputTypeIntent {
			count++
		}
	}
	push(litUint(eng, uint64(count)))
	return nil
}

// GroupIntentIn implements OP_INSPECTGROUPINTENTIN: k j → txid32 output_index_u32 amount_u64.
func GroupIntentIn(eng Engine, k, j int, push func(value.Value)) error {
	p, err := checkPacket(eng)
	if err != nil {
		return err
	}
	if err := checkGroupIndex(p, k); err != nil {
		return err
	}
	idx := 0
	for _, inp := range p.Groups[k].Inputs {
		if inp.Type == InputTypeIntent {
			if idx == j {
				txid := append([]byte(nil), inp.Txid[:]...)
				push(eng.Arena().Lit(txid))
				push(litUint(eng, uint64(inp.OutputIndex)))
				push(litLE64(eng, inp.Amount))
				return nil
			}
			idx++
		}
	}
	return errtag.WithOpcode("inspectgroupintentin", "intent input index out of range")
}
