// Package config defines the tracer's settings and loads them from CLI
// flags. A github.com/spf13/viper instance with the BSST_ environment prefix
// is layered over the flags, but only sigversion is read back from it (so
// BSST_SIGVERSION is the one environment override), and no config file is
// read.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dgpv/bsst/internal/asset"
)

// SigVersion selects the rule set a script is traced under.
type SigVersion string

const (
	SigVersionBase       SigVersion = "base"
	SigVersionWitnessV0  SigVersion = "witness_v0"
	SigVersionTapscript  SigVersion = "tapscript"
)

// Settings mirrors every flag the CLI accepts.
type Settings struct {
	InputFile string

	Z3Enabled          bool
	IsElements         bool
	SigVersion         SigVersion
	IsIncompleteScript bool
	IsMiner            bool

	MinimalDataFlag               bool
	MinimalDataFlagStrict         bool
	MinimalIfFlag                 bool
	StrictEncFlag                 bool
	LowSFlag                      bool
	NullFailFlag                  bool
	NullDummyFlag                 bool
	CleanStackFlag                bool
	WitnessPubKeyTypeFlag         bool
	DiscourageUpgradeablePubKeyType bool

	ProduceModelValues        bool
	ProduceModelValuesFor     []string // glob[:N] entries
	ReportModelValueSizes     bool
	SortModelValues           bool

	MaxSamplesForDynamicStackAccess int

	PointsOfInterest []string // pc list, "*" means all

	CheckAlwaysTrueEnforcements       bool
	MarkPathLocalAlwaysTrueEnforcements bool
	HideAlwaysTrueEnforcements        bool

	SolverTimeoutSeconds             int
	SolverIncreasingTimeoutMultiplier float64
	SolverIncreasingTimeoutMax        int
	MaxSolverTries                    int
	ExitOnSolverResultUnknown         bool

	UseParallelSolving         bool
	ParallelSolvingNumProcesses int

	UseZ3IncrementalMode               bool
	DisableZ3Randomization             bool
	DoProgressiveZ3Checks              bool
	AllZ3AssertionsAreTrackedAssertions bool
	DisableErrorCodeTrackingWithZ3     bool
	Z3Debug                            bool

	TagDataWithPosition        bool
	TagEnforcementsWithPosition bool
	UseDeterministicArgumentsOrder bool

	SkipImmediatelyFailedBranchesOn []string

	AssumeNo160BitHashCollisions bool

	CommentMarker              string
	RestrictDataReferenceNames bool

	MaxTxSize     int
	MaxNumInputs  int
	MaxNumOutputs int

	ExplicitlyEnabledOpcodes []string
	OpPlugins                []string
	Plugins                  []string
	PluginRawInput           bool

	AssetPacketFile string
	AssetPacket     *asset.Packet

	LogProgress               bool
	LogSolvingAttempts        bool
	LogSolvingAttemptsToStderr bool
}

// Default returns the settings in effect when no flag overrides them.
func Default() Settings {
	return Settings{
		SigVersion:                       SigVersionTapscript,
		CleanStackFlag:                   true,
		MinimalDataFlag:                  true,
		MaxSamplesForDynamicStackAccess:  8,
		SolverTimeoutSeconds:             5,
		SolverIncreasingTimeoutMultiplier: 2.0,
		SolverIncreasingTimeoutMax:        60,
		MaxSolverTries:                    5,
		ParallelSolvingNumProcesses:       0, // 0 == CPU count, resolved at solver construction
		CommentMarker:                     "//",
		MaxTxSize:                         400000,
		MaxNumInputs:                      10000,
		MaxNumOutputs:                     10000,
	}
}

// BindFlags registers every settings field on fs; LoadFromViper then binds
// fs into viper.
func BindFlags(fs *pflag.FlagSet, s *Settings) {
	fs.StringVar(&s.InputFile, "input-file", s.InputFile, "script source path; - means stdin")
	fs.BoolVar(&s.Z3Enabled, "z3-enabled", s.Z3Enabled, "enable SMT-backed checks")
	fs.BoolVar(&s.IsElements, "is-elements", s.IsElements, "extend opcode set with Elements script")
	sv := string(s.SigVersion)
	fs.StringVar(&sv, "sigversion", sv, "base|witness_v0|tapscript")
	fs.BoolVar(&s.IsIncompleteScript, "is-incomplete-script", s.IsIncompleteScript, "skip final result check")
	fs.BoolVar(&s.IsMiner, "is-miner", s.IsMiner, "relax policy rules")

	fs.BoolVar(&s.MinimalDataFlag, "minimaldata-flag", s.MinimalDataFlag, "")
	fs.BoolVar(&s.MinimalDataFlagStrict, "minimaldata-flag-strict", s.MinimalDataFlagStrict, "")
	fs.BoolVar(&s.MinimalIfFlag, "minimalif-flag", s.MinimalIfFlag, "")
	fs.BoolVar(&s.StrictEncFlag, "strictenc-flag", s.StrictEncFlag, "")
	fs.BoolVar(&s.LowSFlag, "low-s-flag", s.LowSFlag, "")
	fs.BoolVar(&s.NullFailFlag, "nullfail-flag", s.NullFailFlag, "")
	fs.BoolVar(&s.NullDummyFlag, "nulldummy-flag", s.NullDummyFlag, "")
	fs.BoolVar(&s.CleanStackFlag, "cleanstack-flag", s.CleanStackFlag, "")
	fs.BoolVar(&s.WitnessPubKeyTypeFlag, "witness-pubkeytype-flag", s.WitnessPubKeyTypeFlag, "")
	fs.BoolVar(&s.DiscourageUpgradeablePubKeyType, "discourage-upgradeable-pubkey-type-flag", s.DiscourageUpgradeablePubKeyType, "")

	fs.BoolVar(&s.ProduceModelValues, "produce-model-values", s.ProduceModelValues, "")
	fs.StringSliceVar(&s.ProduceModelValuesFor, "produce-model-values-for", s.ProduceModelValuesFor, "glob[:N]")
	fs.BoolVar(&s.ReportModelValueSizes, "report-model-value-sizes", s.ReportModelValueSizes, "")
	fs.BoolVar(&s.SortModelValues, "sort-model-values", s.SortModelValues, "")

	fs.IntVar(&s.MaxSamplesForDynamicStackAccess, "max-samples-for-dynamic-stack-access", s.MaxSamplesForDynamicStackAccess, "")
	fs.StringSliceVar(&s.PointsOfInterest, "points-of-interest", s.PointsOfInterest, "")

	fs.BoolVar(&s.CheckAlwaysTrueEnforcements, "check-always-true-enforcements", s.CheckAlwaysTrueEnforcements, "")
	fs.BoolVar(&s.MarkPathLocalAlwaysTrueEnforcements, "mark-path-local-always-true-enforcements", s.MarkPathLocalAlwaysTrueEnforcements, "")
	fs.BoolVar(&s.HideAlwaysTrueEnforcements, "hide-always-true-enforcements", s.HideAlwaysTrueEnforcements, "")

	fs.IntVar(&s.SolverTimeoutSeconds, "solver-timeout-seconds", s.SolverTimeoutSeconds, "")
	fs.Float64Var(&s.SolverIncreasingTimeoutMultiplier, "solver-increasing-timeout-multiplier", s.SolverIncreasingTimeoutMultiplier, "")
	fs.IntVar(&s.SolverIncreasingTimeoutMax, "solver-increasing-timeout-max", s.SolverIncreasingTimeoutMax, "")
	fs.IntVar(&s.MaxSolverTries, "max-solver-tries", s.MaxSolverTries, "")
	fs.BoolVar(&s.ExitOnSolverResultUnknown, "exit-on-solver-result-unknown", s.ExitOnSolverResultUnknown, "")

	fs.BoolVar(&s.UseParallelSolving, "use-parallel-solving", s.UseParallelSolving, "")
	fs.IntVar(&s.ParallelSolvingNumProcesses, "parallel-solving-num-processes", s.ParallelSolvingNumProcesses, "")

	fs.BoolVar(&s.UseZ3IncrementalMode, "use-z3-incremental-mode", s.UseZ3IncrementalMode, "")
	fs.BoolVar(&s.DisableZ3Randomization, "disable-z3-randomization", s.DisableZ3Randomization, "")
	fs.BoolVar(&s.DoProgressiveZ3Checks, "do-progressive-z3-checks", s.DoProgressiveZ3Checks, "")
	fs.BoolVar(&s.AllZ3AssertionsAreTrackedAssertions, "all-z3-assertions-are-tracked-assertions", s.AllZ3AssertionsAreTrackedAssertions, "")
	fs.BoolVar(&s.DisableErrorCodeTrackingWithZ3, "disable-error-code-tracking-with-z3", s.DisableErrorCodeTrackingWithZ3, "")
	fs.BoolVar(&s.Z3Debug, "z3-debug", s.Z3Debug, "")

	fs.BoolVar(&s.TagDataWithPosition, "tag-data-with-position", s.TagDataWithPosition, "")
	fs.BoolVar(&s.TagEnforcementsWithPosition, "tag-enforcements-with-position", s.TagEnforcementsWithPosition, "")
	fs.BoolVar(&s.UseDeterministicArgumentsOrder, "use-deterministic-arguments-order", s.UseDeterministicArgumentsOrder, "")

	fs.StringSliceVar(&s.SkipImmediatelyFailedBranchesOn, "skip-immediately-failed-branches-on", s.SkipImmediatelyFailedBranchesOn, "")

	fs.BoolVar(&s.AssumeNo160BitHashCollisions, "assume-no-160bit-hash-collisions", s.AssumeNo160BitHashCollisions, "")

	fs.StringVar(&s.CommentMarker, "comment-marker", s.CommentMarker, "")
	fs.BoolVar(&s.RestrictDataReferenceNames, "restrict-data-reference-names", s.RestrictDataReferenceNames, "")

	fs.IntVar(&s.MaxTxSize, "max-tx-size", s.MaxTxSize, "")
	fs.IntVar(&s.MaxNumInputs, "max-num-inputs", s.MaxNumInputs, "")
	fs.IntVar(&s.MaxNumOutputs, "max-num-outputs", s.MaxNumOutputs, "")

	fs.StringSliceVar(&s.ExplicitlyEnabledOpcodes, "explicitly-enabled-opcodes", s.ExplicitlyEnabledOpcodes, "")
	fs.StringSliceVar(&s.OpPlugins, "op-plugins", s.OpPlugins, "")
	fs.StringSliceVar(&s.Plugins, "plugins", s.Plugins, "")
	fs.BoolVar(&s.PluginRawInput, "plugin-raw-input", s.PluginRawInput, "")

	fs.StringVar(&s.AssetPacketFile, "asset-packet-file", s.AssetPacketFile, "JSON file describing a fixed asset packet for the INSPECTASSET* opcode family")

	fs.BoolVar(&s.LogProgress, "log-progress", s.LogProgress, "")
	fs.BoolVar(&s.LogSolvingAttempts, "log-solving-attempts", s.LogSolvingAttempts, "")
	fs.BoolVar(&s.LogSolvingAttemptsToStderr, "log-solving-attempts-to-stderr", s.LogSolvingAttemptsToStderr, "")

	fs.Lookup("sigversion").Value.Set(sv)
	s.SigVersion = SigVersion(sv)
}

// LoadFromViper binds the parsed flags into v with the BSST_ environment
// prefix (viper.AutomaticEnv + viper.BindPFlags), reads sigversion back from
// v (the only setting taken from it, so BSST_SIGVERSION applies when
// --sigversion is not given), loads --asset-packet-file, and validates the
// result. No config file is read.
func LoadFromViper(v *viper.Viper, fs *pflag.FlagSet, s *Settings) error {
	v.SetEnvPrefix("BSST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	// Re-apply sigversion since BindPFlags doesn't know our custom type.
	if v.IsSet("sigversion") {
		s.SigVersion = SigVersion(v.GetString("sigversion"))
	}

	if s.AssetPacketFile != "" {
		data, err := os.ReadFile(s.AssetPacketFile)
		if err != nil {
			return fmt.Errorf("reading --asset-packet-file: %w", err)
		}
		packet, err := asset.ParsePacket(data)
		if err != nil {
			return fmt.Errorf("parsing --asset-packet-file: %w", err)
		}
		s.AssetPacket = packet
	}

	return Validate(s)
}

// Validate enforces the invariants implies between flags.
func Validate(s *Settings) error {
	switch s.SigVersion {
	case SigVersionBase, SigVersionWitnessV0, SigVersionTapscript:
	default:
		return fmt.Errorf("invalid --sigversion %q", s.SigVersion)
	}

	if s.IsIncompleteScript {
		// An incomplete script implies cleanstack off.
		s.CleanStackFlag = false
	}

	if s.MaxSamplesForDynamicStackAccess <= 0 {
		return fmt.Errorf("--max-samples-for-dynamic-stack-access must be positive")
	}

	return nil
}
