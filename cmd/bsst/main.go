// Command bsst traces a stack-based transaction script symbolically,
// exploring every reachable execution path and reporting the constraints
// each one enforces.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aclements/go-z3/z3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dgpv/bsst/internal/assert"
	"github.com/dgpv/bsst/internal/config"
	"github.com/dgpv/bsst/internal/dynstack"
	"github.com/dgpv/bsst/internal/opcode"
	"github.com/dgpv/bsst/internal/pathexplorer"
	"github.com/dgpv/bsst/internal/report"
	"github.com/dgpv/bsst/internal/smt"
	"github.com/dgpv/bsst/internal/token"
	"github.com/dgpv/bsst/internal/value"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		logrus.WithError(err).Error("bsst failed")
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	settings := config.Default()

	fs := pflag.NewFlagSet("bsst", pflag.ContinueOnError)
	config.BindFlags(fs, &settings)
	if err := fs.Parse(args); err != nil {
		return err
	}

	v := viper.New()
	if err := config.LoadFromViper(v, fs, &settings); err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	log := logrus.New()
	if settings.LogProgress || settings.LogSolvingAttempts {
		log.SetLevel(logrus.DebugLevel)
	}

	source, err := readSource(settings.InputFile)
	if err != nil {
		return fmt.Errorf("reading script source: %w", err)
	}

	tz := token.New(settings.CommentMarker)
	toks, err := tz.Tokenize(string(source))
	if err != nil {
		return fmt.Errorf("tokenizing script: %w", err)
	}

	arena := value.NewArena()
	applyNameAliases(arena, toks)

	table := opcode.Default()

	explorer := &pathexplorer.Explorer{
		Settings: &settings,
		Table:    table,
		Hooks:    assert.Merge(),
	}

	policy := smt.NewPolicy(
		settings.SolverTimeoutSeconds,
		settings.SolverIncreasingTimeoutMultiplier,
		settings.SolverIncreasingTimeoutMax,
		settings.MaxSolverTries,
		settings.DisableZ3Randomization,
		settings.ExitOnSolverResultUnknown,
		log,
	)
	policy.LogToStderr = settings.LogSolvingAttemptsToStderr
	explorer.Policy = policy

	hook := &dynstack.Hook{
		Sampler: &dynstack.Sampler{Policy: policy, Max: settings.MaxSamplesForDynamicStackAccess},
	}
	if settings.Z3Enabled {
		z3Ctx := z3.NewContext(z3.NewConfig())
		factory := smt.NewZ3Factory(z3Ctx)
		explorer.SolverFactory = factory
		hook.NewSolverForPath = factory
	}
	dynstack.Register(table, hook, settings.Z3Enabled)

	paths, err := explorer.Run(arena, toks)
	if err != nil {
		return fmt.Errorf("exploring script: %w", err)
	}

	fmt.Fprint(out, report.Render(toks, paths, &settings))
	return nil
}

func readSource(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// applyNameAliases pre-scans comments for bsst-name-alias(wit<N>): alias so
// aliases are registered before any opcode references the witness (
// the script-source syntax entry for this comment form).
func applyNameAliases(arena *value.Arena, toks []token.Token) {
	for _, tok := range toks {
		if tok.Kind != token.KindComment {
			continue
		}
		idx, alias, ok := parseNameAlias(tok.Comment)
		if !ok {
			continue
		}
		arena.Wit(idx)
		arena.SetAlias(idx, alias)
	}
}

func parseNameAlias(text string) (int, string, bool) {
	const prefix = "bsst-name-alias(wit"
	if len(text) < len(prefix) {
		return 0, "", false
	}
	if text[:len(prefix)] != prefix {
		return 0, "", false
	}
	rest := text[len(prefix):]
	close := -1
	for i, c := range rest {
		if c == ')' {
			close = i
			break
		}
	}
	if close < 0 {
		return 0, "", false
	}
	var idx int
	if _, err := fmt.Sscanf(rest[:close], "%d", &idx); err != nil {
		return 0, "", false
	}
	rest = rest[close+1:]
	colon := -1
	for i, c := range rest {
		if c == ':' {
			colon = i
			break
		}
	}
	if colon < 0 {
		return 0, "", false
	}
	alias := rest[colon+1:]
	for len(alias) > 0 && alias[0] == ' ' {
		alias = alias[1:]
	}
	return idx, alias, true
}
