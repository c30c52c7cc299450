package assert

import (
	bsstctx "github.com/dgpv/bsst/internal/context"
)

// Hooks is the plugin callback registry: at well-defined
// points the engine invokes externally-registered callbacks, knowing only
// their contract, never their origin. Every field is optional; a nil field
// means no plugin registered for that point.
type Hooks struct {
	// ParseInputFile lets a plugin substitute or preprocess the raw script
	// source before tokenization.
	ParseInputFile func(raw []byte) ([]byte, error)

	// PluginSettings lets a plugin contribute additional CLI flags, called
	// once during flag registration.
	PluginSettings func(registerFlag func(name, usage string))

	// PluginComment is offered every comment the tokenizer doesn't itself
	// recognize as a bsst-assert/bsst-assume/data-reference form, in case a
	// plugin defines its own comment syntax.
	PluginComment func(ctx *bsstctx.Context, text string, line int) (handled bool, err error)

	// ScriptFailure is called when a path is sealed as failed, after
	// ctx.Fail has already recorded the tag/message/snapshot.
	ScriptFailure func(ctx *bsstctx.Context)

	// ReportStart and ReportEnd bracket report rendering.
	ReportStart func()
	ReportEnd   func()

	// Pushdata is called whenever a literal is pushed by the script (not by
	// an opcode's own computed result), letting a plugin veto or rewrite
	// the pushed bytes before they're interned.
	Pushdata func(ctx *bsstctx.Context, raw []byte) ([]byte, error)

	// PreOpcode and PostOpcode bracket every opcode's transfer function
	// call, seeing the live context and able to mutate it (push a custom
	// result, attach a warning, publish a new enforcement).
	PreOpcode  func(ctx *bsstctx.Context, opcodeName string) error
	PostOpcode func(ctx *bsstctx.Context, opcodeName string) error

	// PreFinalize and PostFinalize bracket the finalization transfer
	// function at the end of each path.
	PreFinalize  func(ctx *bsstctx.Context) error
	PostFinalize func(ctx *bsstctx.Context) error
}

// Merge combines hook sets from multiple loaded plugins (the --plugins flag
// accepts a list) into one, calling every registered callback for a point
// in registration order and stopping at the first error for error-returning
// hooks. ParseInputFile, PluginSettings and PluginComment are not merged and
// stay nil in the result.
func Merge(all ...Hooks) Hooks {
	var merged Hooks

	merged.Pushdata = func(ctx *bsstctx.Context, raw []byte) ([]byte, error) {
		cur := raw
		for _, h := range all {
			if h.Pushdata == nil {
				continue
			}
			out, err := h.Pushdata(ctx, cur)
			if err != nil {
				return nil, err
			}
			cur = out
		}
		return cur, nil
	}

	merged.PreOpcode = chainErr(all, func(h Hooks) func(*bsstctx.Context, string) error { return h.PreOpcode })
	merged.PostOpcode = chainErr(all, func(h Hooks) func(*bsstctx.Context, string) error { return h.PostOpcode })

	merged.PreFinalize = chainCtxErr(all, func(h Hooks) func(*bsstctx.Context) error { return h.PreFinalize })
	merged.PostFinalize = chainCtxErr(all, func(h Hooks) func(*bsstctx.Context) error { return h.PostFinalize })

	merged.ScriptFailure = func(ctx *bsstctx.Context) {
		for _, h := range all {
			if h.ScriptFailure != nil {
				h.ScriptFailure(ctx)
			}
		}
	}
	merged.ReportStart = chainVoid(all, func(h Hooks) func() { return h.ReportStart })
	merged.ReportEnd = chainVoid(all, func(h Hooks) func() { return h.ReportEnd })

	return merged
}

func chainErr(all []Hooks, sel func(Hooks) func(*bsstctx.Context, string) error) func(*bsstctx.Context, string) error {
	return func(ctx *bsstctx.Context, name string) error {
		for _, h := range all {
			if f := sel(h); f != nil {
				if err := f(ctx, name); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

func chainCtxErr(all []Hooks, sel func(Hooks) func(*bsstctx.Context) error) func(*bsstctx.Context) error {
	return func(ctx *bsstctx.Context) error {
		for _, h := range all {
			if f := sel(h); f != nil {
				if err := f(ctx); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

func chainVoid(all []Hooks, sel func(Hooks) func()) func() {
	return func() {
		for _, h := range all {
			if f := sel(h); f != nil {
				f()
			}
		}
	}
}
