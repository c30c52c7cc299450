// Package report implements report rendering: walking the completed path tree
// and emitting its sections in order, lifting shared content to "All
// valid paths" where sibling content matches and deduplicating within a
// path.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dgpv/bsst/internal/config"
	bsstctx "github.com/dgpv/bsst/internal/context"
	"github.com/dgpv/bsst/internal/pathexplorer"
	"github.com/dgpv/bsst/internal/token"
)

// Render produces the full textual report for a completed exploration.
func Render(toks []token.Token, paths []pathexplorer.Path, s *config.Settings) string {
	var b strings.Builder

	valid, unexplored, failed := split(paths)

	writeSection(&b, "Decoded script", func(b *strings.Builder) {
		writeDecodedScript(b, toks)
	})

	writeSection(&b, "Note: unexplored paths", func(b *strings.Builder) {
		if len(unexplored) == 0 {
			b.WriteString("(none)\n")
			return
		}
		for _, p := range unexplored {
			fmt.Fprintf(b, "- %s\n", p.Ctx.Failure.Message)
		}
	})

	writeSection(&b, "Valid paths", func(b *strings.Builder) {
		if len(valid) == 0 {
			b.WriteString("(none)\n")
			return
		}
		for _, p := range valid {
			fmt.Fprintf(b, "- %s\n", pathLabel(p))
		}
	})

	writeSection(&b, "Enforced constraints per path", func(b *strings.Builder) {
		writeEnforcements(b, valid, s)
	})

	writeSection(&b, "Unused values", func(b *strings.Builder) {
		writeUnused(b, valid)
	})

	writeSection(&b, modelSectionTitle(s), func(b *strings.Builder) {
		writeWitnessUsage(b, valid, s)
	})

	writeSection(&b, "Warnings per path", func(b *strings.Builder) {
		writeWarnings(b, paths)
	})

	writeSection(&b, "Failures per path", func(b *strings.Builder) {
		if len(failed) == 0 {
			b.WriteString("(none)\n")
			return
		}
		for _, p := range failed {
			fmt.Fprintf(b, "- %s: %s (%s)\n", pathLabel(p), p.Ctx.Failure.Tag, p.Ctx.Failure.Message)
		}
	})

	writeSection(&b, "Data references", func(b *strings.Builder) {
		writeDataRefs(b, valid)
	})

	return b.String()
}

func modelSectionTitle(s *config.Settings) string {
	if s.ProduceModelValues {
		return "Witness usage and model values"
	}
	return "Witness usage and stack contents"
}

// split partitions paths into valid ones, failed placeholders standing in
// for a dynamic-access sample the exploration budget left unexplored (see
// dynstack's "was not explored" terminal children), and genuine failures.
func split(paths []pathexplorer.Path) (valid, unexplored, failed []pathexplorer.Path) {
	for _, p := range paths {
		switch {
		case !p.Failed:
			valid = append(valid, p)
		case isUnexplored(p):
			unexplored = append(unexplored, p)
		default:
			failed = append(failed, p)
		}
	}
	return
}

// isUnexplored recognizes the placeholder failures dynstack's per-sample
// forking appends once its sampling budget runs out with more feasible
// values remaining: an untagged failure whose message carries the
// "was not explored" terminal label.
func isUnexplored(p pathexplorer.Path) bool {
	return p.Ctx.Failure != nil && p.Ctx.Failure.Tag == "" && strings.HasSuffix(p.Ctx.Failure.Message, "(was not explored)")
}

// writeDecodedScript renders the tokenized script in source order, using the
// same token-index positions ("PC") the engine tags enforcements, branch
// labels, and failures with, so a reader can cross-reference directly.
func writeDecodedScript(b *strings.Builder, toks []token.Token) {
	any := false
	for i, tok := range toks {
		if tok.Kind == token.KindComment {
			continue
		}
		any = true
		fmt.Fprintf(b, "%d:L%d %s\n", i, tok.Line, decodedToken(tok))
	}
	if !any {
		b.WriteString("(empty)\n")
	}
}

func decodedToken(tok token.Token) string {
	switch tok.Kind {
	case token.KindLiteral:
		if len(tok.Literal) == 0 {
			return "<empty>"
		}
		return fmt.Sprintf("0x%x", tok.Literal)
	default:
		return tok.Text
	}
}

func writeSection(b *strings.Builder, title string, body func(*strings.Builder)) {
	fmt.Fprintf(b, "=== %s ===\n", title)
	body(b)
	b.WriteString("\n")
}

func pathLabel(p pathexplorer.Path) string {
	if len(p.Ctx.BranchTrail) == 0 {
		return "[Root]"
	}
	labels := make([]string, len(p.Ctx.BranchTrail))
	for i, step := range p.Ctx.BranchTrail {
		labels[i] = step.Label
	}
	return strings.Join(labels, " :: ")
}

func writeEnforcements(b *strings.Builder, valid []pathexplorer.Path, s *config.Settings) {
	if len(valid) == 0 {
		b.WriteString("(none)\n")
		return
	}

	shared := liftShared(valid)
	if len(shared) > 0 {
		b.WriteString("All valid paths:\n")
		for _, line := range shared {
			fmt.Fprintf(b, "  %s\n", line)
		}
	}

	for _, p := range valid {
		local := localOnly(p, shared)
		if len(local) == 0 {
			continue
		}
		fmt.Fprintf(b, "%s:\n", pathLabel(p))
		for _, line := range local {
			fmt.Fprintf(b, "  %s\n", line)
		}
	}
}

// enforcementLine renders one enforcement in the algebra's display form,
// tagging always-true/path-local-always-true markers, and
// a position suffix when tag-enforcements-with-position is set.
func enforcementLine(e bsstctx.Enforcement, s *config.Settings) string {
	disp := e.Predicate.Display(s.UseDeterministicArgumentsOrder)
	marker := ""
	if e.Flags&bsstctx.FlagAlwaysTrue != 0 && !s.HideAlwaysTrueEnforcements {
		marker = " <*>"
	} else if e.Flags&bsstctx.FlagPathLocalAlwaysTrue != 0 {
		marker = " {*}"
	}
	if s.TagEnforcementsWithPosition {
		return fmt.Sprintf("%s @ %d:L%d%s", disp, e.Position.PC, e.Position.Line, marker)
	}
	return fmt.Sprintf("%s @ END%s", disp, marker)
}

func enforcementLines(p pathexplorer.Path, s *config.Settings) []string {
	lines := make([]string, 0, len(p.Ctx.Enforcements))
	seen := map[string]bool{}
	for _, e := range p.Ctx.Enforcements {
		line := enforcementLine(e, s)
		if seen[line] {
			continue
		}
		seen[line] = true
		lines = append(lines, line)
	}
	return lines
}

// liftShared returns the enforcement lines common to every valid path, in
// first-path order ("siblings' enforcement sets are
// intersected position-by-predicate; intersection lifts to the parent").
func liftShared(valid []pathexplorer.Path) []string {
	if len(valid) == 0 {
		return nil
	}
	counts := map[string]int{}
	order := []string{}
	for _, p := range valid {
		for _, line := range dedupe(enforcementLinesRaw(p)) {
			if counts[line] == 0 {
				order = append(order, line)
			}
			counts[line]++
		}
	}
	var shared []string
	for _, line := range order {
		if counts[line] == len(valid) {
			shared = append(shared, line)
		}
	}
	return shared
}

func enforcementLinesRaw(p pathexplorer.Path) []string {
	lines := make([]string, len(p.Ctx.Enforcements))
	for i, e := range p.Ctx.Enforcements {
		lines[i] = enforcementLine(e, &config.Settings{})
	}
	return lines
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func localOnly(p pathexplorer.Path, shared []string) []string {
	sharedSet := map[string]bool{}
	for _, s := range shared {
		sharedSet[s] = true
	}
	var out []string
	for _, line := range enforcementLinesRaw(p) {
		if !sharedSet[line] {
			out = append(out, line)
		}
	}
	return dedupe(out)
}

func writeUnused(b *strings.Builder, valid []pathexplorer.Path) {
	if len(valid) == 0 {
		b.WriteString("(none)\n")
		return
	}
	for _, p := range valid {
		if len(p.Ctx.Unused) == 0 {
			continue
		}
		fmt.Fprintf(b, "%s:\n", pathLabel(p))
		positions := make([]bsstctx.Position, 0, len(p.Ctx.Unused))
		for pos := range p.Ctx.Unused {
			positions = append(positions, pos)
		}
		sort.Slice(positions, func(i, j int) bool { return positions[i].PC < positions[j].PC })
		for _, pos := range positions {
			v := p.Ctx.Unused[pos]
			fmt.Fprintf(b, "  %s from %d:L%d\n", v.Display(false), pos.PC, pos.Line)
		}
	}
}

func writeWitnessUsage(b *strings.Builder, valid []pathexplorer.Path, s *config.Settings) {
	for _, p := range valid {
		fmt.Fprintf(b, "%s: %d witnesses used\n", pathLabel(p), p.Ctx.WitnessUsed)
		for i, v := range p.Ctx.Stack {
			line := fmt.Sprintf("  [%d] %s", i, v.Display(s.UseDeterministicArgumentsOrder))
			if sample, ok := p.Ctx.ModelValues[v.Display(false)]; ok {
				if sample.Matched && s.ProduceModelValues {
					line += " model values " + renderModelValueSet(sample, s)
				} else if s.ReportModelValueSizes && len(sample.Sizes) > 0 {
					line += " size set " + renderSizeSet(sample.Sizes)
				}
			}
			b.WriteString(line + "\n")
		}
	}
}

// renderModelValueSet formats a sampled value set as "{v1,v2,...}",
// appending "Size=N" when every sample shares one encoded size or
// "Sizes={...}" when they don't.
func renderModelValueSet(sample bsstctx.ModelValueSample, s *config.Settings) string {
	parts := make([]string, len(sample.Values))
	for i, v := range sample.Values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	out := "{" + strings.Join(parts, ",") + "}"
	if !s.ReportModelValueSizes || len(sample.Sizes) == 0 {
		return out
	}
	uniform := true
	for _, sz := range sample.Sizes {
		if sz != sample.Sizes[0] {
			uniform = false
			break
		}
	}
	if uniform {
		return fmt.Sprintf("%s Size=%d", out, sample.Sizes[0])
	}
	return fmt.Sprintf("%s %s", out, renderSizeSet(sample.Sizes))
}

// renderSizeSet renders the distinct encoded sizes observed across a
// sample as a sorted set, e.g. "{0,1,2,3,4,5}".
func renderSizeSet(sizes []int) string {
	seen := map[int]bool{}
	var distinct []int
	for _, sz := range sizes {
		if !seen[sz] {
			seen[sz] = true
			distinct = append(distinct, sz)
		}
	}
	sort.Ints(distinct)
	parts := make([]string, len(distinct))
	for i, sz := range distinct {
		parts[i] = strconv.Itoa(sz)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func writeWarnings(b *strings.Builder, paths []pathexplorer.Path) {
	any := false
	for _, p := range paths {
		if len(p.Ctx.Warnings) == 0 {
			continue
		}
		any = true
		fmt.Fprintf(b, "%s:\n", pathLabel(p))
		for _, w := range p.Ctx.Warnings {
			fmt.Fprintf(b, "  %s @ %d:L%d: %s\n", w.Tag, w.Position.PC, w.Position.Line, w.Message)
		}
	}
	if !any {
		b.WriteString("(none)\n")
	}
}

func writeDataRefs(b *strings.Builder, valid []pathexplorer.Path) {
	any := false
	for _, p := range valid {
		if len(p.Ctx.DataRefs) == 0 {
			continue
		}
		any = true
		names := make([]string, 0, len(p.Ctx.DataRefs))
		for name := range p.Ctx.DataRefs {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(b, "%s:\n", pathLabel(p))
		for _, name := range names {
			fmt.Fprintf(b, "  &%s = %s\n", name, p.Ctx.DataRefs[name].Display(false))
		}
	}
	if !any {
		b.WriteString("(none)\n")
	}
}
