package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/toglayer/internal/ir"
)

// ValidationResult is the JSON payload of the validate command.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Hash      string            `json:"config_hash,omitempty"`
	Layers    int               `json:"layers,omitempty"`
	Behaviors []BehaviorSummary `json:"behaviors,omitempty"`
	Bindings  []ir.Binding      `json:"bindings,omitempty"`
	Errors    []CLIError        `json:"errors,omitempty"`
}

// BehaviorSummary describes one configured instance.
type BehaviorSummary struct {
	Name                  ir.InstanceID `json:"name"`
	RequirePriorIdleMs    int32         `json:"require_prior_idle_ms"`
	Policy                string        `json:"policy"`
	ExcludedPositions     []ir.Position `json:"excluded_positions"`
	DeactivationPositions []ir.Position `json:"deactivation_positions"`
	HoldTriggerPositions  []ir.Position `json:"hold_trigger_positions"`
	TimeToLiveMs          uint32        `json:"time_to_live_ms"`
	ActivationDelayMs     *uint32       `json:"activation_delay_ms,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-dir>",
		Short: "Validate a keymap configuration",
		Long: `Compile and validate the CUE keymap configuration in a directory.

Reports every validation problem (duplicate or excess positions, values
out of range, bindings to unknown behaviors or layers) with its code.

Exit codes:
  0 - Configuration valid
  1 - Configuration invalid
  2 - Command error (directory missing, no CUE files)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, configDir string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	res, errs := LoadConfig(configDir)
	if len(errs) > 0 {
		return outputValidationErrors(f, errs)
	}

	f.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, configDir)
	return outputValidateSuccess(f, res)
}

func outputValidateSuccess(f *OutputFormatter, res *LoadResult) error {
	cfg := res.Config
	result := ValidationResult{
		Valid:     true,
		Hash:      res.Hash,
		Layers:    cfg.Layers,
		Behaviors: summarizeBehaviors(cfg),
		Bindings:  cfg.Bindings,
	}
	if f.JSON() {
		return f.Success(result)
	}

	w := f.Writer
	fmt.Fprintf(w, "✓ Config valid: %d layer(s), %d behavior(s), %d binding(s)\n",
		cfg.Layers, len(cfg.Behaviors), len(cfg.Bindings))
	for _, b := range result.Behaviors {
		activation := "immediate"
		if b.ActivationDelayMs != nil {
			activation = fmt.Sprintf("after %dms", *b.ActivationDelayMs)
		}
		fmt.Fprintf(w, "  %s: policy=%s idle=%dms activation=%s\n", b.Name, b.Policy, b.RequirePriorIdleMs, activation)
	}
	for _, b := range cfg.Bindings {
		fmt.Fprintf(w, "  %s -> %s layer %d\n", b.Name, b.Behavior, b.Layer)
	}
	f.VerboseLog("config hash %s", res.Hash)
	return nil
}

func outputValidationErrors(f *OutputFormatter, errs []error) error {
	cliErrs := make([]CLIError, len(errs))
	for i, err := range errs {
		code, msg := errorCode(err)
		cliErrs[i] = CLIError{Code: code, Message: msg}
	}

	first := errs[0]
	exit := ExitFailure
	switch cliErrs[0].Code {
	case ErrCodeNotFound, ErrCodeNoFiles, ErrCodeScanError:
		exit = ExitCommandError
	}

	if f.JSON() {
		if err := f.Respond(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: cliErrs},
			Error:  &cliErrs[0],
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(f.Writer, "✗ Validation failed")
		fmt.Fprintln(f.Writer)
		for _, e := range cliErrs {
			fmt.Fprintf(f.Writer, "  %s: %s\n", e.Code, e.Message)
		}
	}

	return WrapExitError(exit, fmt.Sprintf("validation failed with %d error(s)", len(errs)), first)
}

func summarizeBehaviors(cfg *ir.KeymapConfig) []BehaviorSummary {
	out := make([]BehaviorSummary, 0, len(cfg.Behaviors))
	for i := range cfg.Behaviors {
		b := &cfg.Behaviors[i]
		s := BehaviorSummary{
			Name:                  b.Name,
			RequirePriorIdleMs:    b.RequirePriorIdleMs,
			Policy:                policyName(b),
			ExcludedPositions:     b.ExcludedPositions.Positions(),
			DeactivationPositions: b.DeactivationPositions.Positions(),
			HoldTriggerPositions:  b.HoldTriggerPositions.Positions(),
			TimeToLiveMs:          b.TimeToLiveMs,
		}
		if b.DeferActivation {
			d := b.ActivationDelayMs
			s.ActivationDelayMs = &d
		}
		out = append(out, s)
	}
	return out
}

// policyName names the position policy an instance runs.
func policyName(b *ir.BehaviorConfig) string {
	if b.MatchesEveryPosition() {
		return "exclusion-only"
	}
	var parts []string
	if !b.DeactivationPositions.Empty() {
		parts = append(parts, "deactivation")
	}
	if !b.HoldTriggerPositions.Empty() {
		parts = append(parts, "hold-trigger")
	}
	return strings.Join(parts, "+")
}
