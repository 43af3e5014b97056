package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conn-castle/modlayer/internal/engine"
	"github.com/conn-castle/modlayer/internal/github"
	"github.com/conn-castle/modlayer/internal/messages"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed)
	dimColor  = color.New(color.Faint)
)

func statusLabel(s engine.Status) string {
	label := fmt.Sprintf("%-10s", string(s))
	switch s {
	case engine.StatusFailed:
		return failColor.Sprint(label)
	case engine.StatusAborted:
		return warnColor.Sprint(label)
	case engine.StatusUnchanged:
		return dimColor.Sprint(label)
	default:
		return okColor.Sprint(label)
	}
}

func writeOutcomes(out io.Writer, result engine.BatchResult) {
	var ok, failed, aborted int
	for _, o := range result.Outcomes {
		version := ""
		if o.Version != "" {
			version = fmt.Sprintf(messages.OutcomeVersionFmt, o.Version)
		}
		_, _ = fmt.Fprintf(out, messages.OutcomeLineFmt, statusLabel(o.Status), o.Name, version)
		for _, w := range o.Warnings {
			_, _ = fmt.Fprintf(out, messages.OutcomeWarningFmt, warnColor.Sprint(w))
		}
		if o.Err != nil {
			_, _ = fmt.Fprintf(out, messages.OutcomeErrorFmt, o.Err)
		}
		switch o.Status {
		case engine.StatusFailed:
			failed++
		case engine.StatusAborted:
			aborted++
		default:
			ok++
		}
	}
	if len(result.Outcomes) > 1 {
		_, _ = fmt.Fprintf(out, messages.OutcomeSummaryFmt, ok, failed, aborted)
	}
}

// report prints a batch result and turns it into the command's error. A
// fatal error is returned as is; per-mod failures were already printed and
// only set the exit code.
func (a *app) report(cmd *cobra.Command, result engine.BatchResult) error {
	writeOutcomes(cmd.OutOrStdout(), result)
	if result.Fatal != nil {
		if github.IsRateLimitError(result.Fatal) && strings.TrimSpace(a.settings.GitHub.Token) == "" {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), warnColor.Sprint(messages.RateLimitTokenHint))
		}
		return fmt.Errorf(messages.OutcomeFatalFmt, result.Fatal)
	}
	if len(result.Failed()) > 0 {
		return &SilentExitError{Code: 1}
	}
	return nil
}
