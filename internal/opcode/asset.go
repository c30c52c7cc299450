package opcode

import (
	"fmt"

	"github.com/dgpv/bsst/internal/asset"
	"github.com/dgpv/bsst/internal/config"
	"github.com/dgpv/bsst/internal/context"
	"github.com/dgpv/bsst/internal/errtag"
	"github.com/dgpv/bsst/internal/value"
)

// ctxAssetEngine adapts a context.Context/config.Settings pair to
// asset.Engine, the narrow view the asset package's opcode helpers need.
type ctxAssetEngine struct {
	ctx    *context.Context
	packet *asset.Packet
}

func (e ctxAssetEngine) Arena() *value.Arena { return e.ctx.Arena }
func (e ctxAssetEngine) Packet() *asset.Packet { return e.packet }

// registerAsset wires the Arkade Asset V1 group-introspection opcode family.
// Every opcode here requires --is-elements and every index argument to be a
// statically known script number: the asset packet's group/entry counts are
// not modeled symbolically, so an unknown index has no sample-and-fork
// fallback the way PICK/ROLL's dynamic stack access does (internal/dynstack).
func registerAsset(t Table) {
	t["OP_INSPECTNUMASSETGROUPS"] = assetOp0("INSPECTNUMASSETGROUPS", func(eng asset.Engine, push func(value.Value)) error {
		return asset.NumAssetGroups(eng, push)
	})
	t["OP_INSPECTASSETGROUPASSETID"] = assetOpK("INSPECTASSETGROUPASSETID", func(eng asset.Engine, k int, push func(value.Value)) error {
		return asset.GroupAssetID(eng, k, push)
	})
	t["OP_INSPECTASSETGROUPCTRL"] = assetOpK("INSPECTASSETGROUPCTRL", func(eng asset.Engine, k int, push func(value.Value)) error {
		return asset.GroupCtrl(eng, k, push)
	})
	t["OP_INSPECTASSETGROUPMETADATAHASH"] = assetOpK("INSPECTASSETGROUPMETADATAHASH", func(eng asset.Engine, k int, push func(value.Value)) error {
		return asset.GroupMetadataHash(eng, k, push)
	})
	t["OP_INSPECTGROUPINTENTOUTCOUNT"] = assetOpK("INSPECTGROUPINTENTOUTCOUNT", func(eng asset.Engine, k int, push func(value.Value)) error {
		return asset.GroupIntentOutCount(eng, k, push)
	})
	t["OP_INSPECTGROUPINTENTINCOUNT"] = assetOpK("INSPECTGROUPINTENTINCOUNT", func(eng asset.Engine, k int, push func(value.Value)) error {
		return asset.GroupIntentInCount(eng, k, push)
	})

	t["OP_FINDASSETGROUPBYASSETID"] = assetOp("FINDASSETGROUPBYASSETID", 2, func(eng asset.Engine, ops []value.Value, push func(value.Value)) error {
		id, ok := decodeAssetID(ops[0], ops[1])
		if !ok {
			return errNotStatic
		}
		return asset.FindGroupByAssetID(eng, id, push)
	})

	t["OP_INSPECTASSETGROUPNUM"] = assetOp("INSPECTASSETGROUPNUM", 2, func(eng asset.Engine, ops []value.Value, push func(value.Value)) error {
		k, kok := intOf(ops[0])
		src, sok := intOf(ops[1])
		if !kok || !sok {
			return errNotStatic
		}
		return asset.GroupNum(eng, k, src, push)
	})

	t["OP_INSPECTASSETGROUP"] = assetOp("INSPECTASSETGROUP", 3, func(eng asset.Engine, ops []value.Value, push func(value.Value)) error {
		k, kok := intOf(ops[0])
		j, jok := intOf(ops[1])
		src, sok := intOf(ops[2])
		if !kok || !jok || !sok {
			return errNotStatic
		}
		return asset.GroupEntry(eng, k, j, src, push)
	})

	t["OP_INSPECTASSETGROUPSUM"] = assetOp("INSPECTASSETGROUPSUM", 2, func(eng asset.Engine, ops []value.Value, push func(value.Value)) error {
		k, kok := intOf(ops[0])
		src, sok := intOf(ops[1])
		if !kok || !sok {
			return errNotStatic
		}
		return asset.GroupSum(eng, k, src, push)
	})

	t["OP_INSPECTGROUPINTENTOUT"] = assetOp("INSPECTGROUPINTENTOUT", 2, func(eng asset.Engine, ops []value.Value, push func(value.Value)) error {
		k, kok := intOf(ops[0])
		j, jok := intOf(ops[1])
		if !kok || !jok {
			return errNotStatic
		}
		return asset.GroupIntentOut(eng, k, j, push)
	})

	t["OP_INSPECTGROUPINTENTIN"] = assetOp("INSPECTGROUPINTENTIN", 2, func(eng asset.Engine, ops []value.Value, push func(value.Value)) error {
		k, kok := intOf(ops[0])
		j, jok := intOf(ops[1])
		if !kok || !jok {
			return errNotStatic
		}
		return asset.GroupIntentIn(eng, k, j, push)
	})

	t["OP_INSPECTOUTASSETCOUNT"] = assetOp("INSPECTOUTASSETCOUNT", 1, func(eng asset.Engine, ops []value.Value, push func(value.Value)) error {
		o, ok := intOf(ops[0])
		if !ok {
			return errNotStatic
		}
		return asset.OutAssetCount(eng, o, push)
	})
	t["OP_INSPECTINASSETCOUNT"] = assetOp("INSPECTINASSETCOUNT", 1, func(eng asset.Engine, ops []value.Value, push func(value.Value)) error {
		i, ok := intOf(ops[0])
		if !ok {
			return errNotStatic
		}
		return asset.InAssetCount(eng, i, push)
	})

	t["OP_INSPECTOUTASSETAT"] = assetOp("INSPECTOUTASSETAT", 2, func(eng asset.Engine, ops []value.Value, push func(value.Value)) error {
		o, ook := intOf(ops[0])
		tt, tok := intOf(ops[1])
		if !ook || !tok {
			return errNotStatic
		}
		return asset.OutAssetAt(eng, o, tt, push)
	})
	t["OP_INSPECTINASSETAT"] = assetOp("INSPECTINASSETAT", 2, func(eng asset.Engine, ops []value.Value, push func(value.Value)) error {
		i, iok := intOf(ops[0])
		tt, tok := intOf(ops[1])
		if !iok || !tok {
			return errNotStatic
		}
		return asset.InAssetAt(eng, i, tt, push)
	})

	t["OP_INSPECTOUTASSETLOOKUP"] = assetOp("INSPECTOUTASSETLOOKUP", 3, func(eng asset.Engine, ops []value.Value, push func(value.Value)) error {
		o, ook := intOf(ops[0])
		id, idok := decodeAssetID(ops[1], ops[2])
		if !ook || !idok {
			return errNotStatic
		}
		return asset.OutAssetLookup(eng, o, id, push)
	})
	t["OP_INSPECTINASSETLOOKUP"] = assetOp("INSPECTINASSETLOOKUP", 3, func(eng asset.Engine, ops []value.Value, push func(value.Value)) error {
		i, iok := intOf(ops[0])
		id, idok := decodeAssetID(ops[1], ops[2])
		if !iok || !idok {
			return errNotStatic
		}
		return asset.InAssetLookup(eng, i, id, push)
	})
}

var errNotStatic = fmt.Errorf("asset opcode index must be a statically known script number")

func intOf(v value.Value) (int, bool) {
	n, ok := v.ScriptNum()
	if !ok {
		return 0, false
	}
	i, ok := n.Int64()
	return int(i), ok
}

func decodeAssetID(txid, gidx value.Value) (asset.ID, bool) {
	txidBytes, ok := txid.Bytes()
	if !ok || len(txidBytes) != 32 {
		return asset.ID{}, false
	}
	g, ok := intOf(gidx)
	if !ok {
		return asset.ID{}, false
	}
	var id asset.ID
	copy(id.Txid[:], txidBytes)
	id.Gidx = uint16(g)
	return id, true
}

func assetGuard(ctx *context.Context, s *config.Settings, pos context.Position, opname string) bool {
	if !s.IsElements {
		ctx.Fail(pos, errtag.WithOpcode(opname, "requires --is-elements").Tag(), opname+" requires --is-elements")
		return false
	}
	return true
}

func assetOp0(opname string, fn func(eng asset.Engine, push func(value.Value)) error) TransferFunc {
	return func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		if !assetGuard(ctx, s, pos, opname) {
			return nil, nil
		}
		eng := ctxAssetEngine{ctx: ctx, packet: s.AssetPacket}
		if err := fn(eng, func(v value.Value) { ctx.Push(v, pos) }); err != nil {
			ctx.Fail(pos, errtag.WithOpcode(opname, err.Error()).Tag(), err.Error())
		}
		return nil, nil
	}
}

func assetOpK(opname string, fn func(eng asset.Engine, k int, push func(value.Value)) error) TransferFunc {
	return func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		if !assetGuard(ctx, s, pos, opname) {
			return nil, nil
		}
		ops, ok := popN(ctx, 1)
		if !ok {
			failArity(ctx, pos, opname)
			return nil, nil
		}
		k, kok := intOf(ops[0])
		if !kok {
			ctx.Fail(pos, errtag.WithOpcode(opname, errNotStatic.Error()).Tag(), errNotStatic.Error())
			return nil, nil
		}
		eng := ctxAssetEngine{ctx: ctx, packet: s.AssetPacket}
		if err := fn(eng, k, func(v value.Value) { ctx.Push(v, pos) }); err != nil {
			ctx.Fail(pos, errtag.WithOpcode(opname, err.Error()).Tag(), err.Error())
		}
		return nil, nil
	}
}

func assetOp(opname string, arity int, fn func(eng asset.Engine, ops []value.Value, push func(value.Value)) error) TransferFunc {
	return func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		if !assetGuard(ctx, s, pos, opname) {
			return nil, nil
		}
		ops, ok := popN(ctx, arity)
		if !ok {
			failArity(ctx, pos, opname)
			return nil, nil
		}
		eng := ctxAssetEngine{ctx: ctx, packet: s.AssetPacket}
		if err := fn(eng, ops, func(v value.Value) { ctx.Push(v, pos) }); err != nil {
			ctx.Fail(pos, errtag.WithOpcode(opname, err.Error()).Tag(), err.Error())
		}
		return nil, nil
	}
}
