package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conn-castle/modlayer/internal/engine"
	"github.com/conn-castle/modlayer/internal/messages"
	"github.com/conn-castle/modlayer/internal/modstate"
	"github.com/conn-castle/modlayer/internal/profile"
	"github.com/conn-castle/modlayer/internal/prompt"
	"github.com/conn-castle/modlayer/internal/resolve"
	"github.com/conn-castle/modlayer/internal/terminal"
)

// promptUI is the picker surface commands use when no mods are named.
type promptUI interface {
	prompt.UI
	Interactive() bool
}

var newPromptUI = func() promptUI { return prompt.NewHuhUI() }

var terminalWidth = terminal.Width

func parseIdentifiers(args []string) ([]profile.ModIdentifier, error) {
	ids := make([]profile.ModIdentifier, 0, len(args))
	for _, arg := range args {
		id, err := profile.ParseIdentifier(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseFilters(raw []string) ([]resolve.Filter, error) {
	out := make([]resolve.Filter, 0, len(raw))
	for _, r := range raw {
		f, err := resolve.ParseFilter(r)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// pickMods returns names unchanged when given. Otherwise it asks the user to
// choose among the profile entries keep accepts.
func pickMods(eng *engine.Engine, names []string, title string, keep func(profile.ModEntry) bool) ([]string, error) {
	if len(names) > 0 {
		return names, nil
	}
	ui := newPromptUI()
	if !ui.Interactive() {
		return nil, prompt.ErrNotInteractive
	}
	p, err := eng.Profile()
	if err != nil {
		return nil, err
	}
	var options []string
	for _, m := range p.Mods {
		if keep(m) {
			options = append(options, m.ID.String())
		}
	}
	if len(options) == 0 {
		return nil, errors.New(messages.PickNothing)
	}
	var picked []string
	if err := ui.MultiSelect(title, options, &picked); err != nil {
		return nil, err
	}
	if len(picked) == 0 {
		return nil, prompt.ErrCanceled
	}
	return picked, nil
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var filters []string
	var offline, installNow bool

	cmd := &cobra.Command{
		Use:   messages.AddUse,
		Short: messages.AddShort,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIdentifiers(args)
			if err != nil {
				return err
			}
			parsed, err := parseFilters(filters)
			if err != nil {
				return err
			}
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}
			result := eng.Add(cmd.Context(), ids, engine.AddOptions{Filters: parsed, Offline: offline})
			if err := a.report(cmd, result); err != nil || !installNow {
				return err
			}
			names := make([]string, 0, len(ids))
			for _, id := range ids {
				names = append(names, id.String())
			}
			return a.report(cmd, eng.Upgrade(cmd.Context(), engine.UpgradeOptions{Names: names}))
		},
	}
	cmd.Flags().StringArrayVar(&filters, "filter", nil, messages.AddFlagFilter)
	cmd.Flags().BoolVar(&offline, "offline", false, messages.AddFlagOffline)
	cmd.Flags().BoolVar(&installNow, "install", false, messages.AddFlagInstall)
	return cmd
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	var keepFiles, yes bool

	cmd := &cobra.Command{
		Use:   messages.RemoveUse,
		Short: messages.RemoveShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}
			picked := len(args) == 0
			names, err := pickMods(eng, args, messages.RemovePickTitle, func(profile.ModEntry) bool { return true })
			if err != nil {
				return err
			}
			if picked && !yes {
				title := fmt.Sprintf(messages.RemoveConfirmFmt, len(names))
				if keepFiles {
					title = fmt.Sprintf(messages.RemoveConfirmKeep, len(names))
				}
				confirmed := false
				if err := newPromptUI().Confirm(title, &confirmed); err != nil {
					return err
				}
				if !confirmed {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), messages.RemoveCanceled)
					return nil
				}
			}
			return a.report(cmd, eng.Remove(names, keepFiles))
		},
	}
	cmd.Flags().BoolVar(&keepFiles, "keep-files", false, messages.RemoveFlagKeepFiles)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, messages.RemoveFlagYes)
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.ListUse,
		Short: messages.ListShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}
			p, err := eng.Profile()
			if err != nil {
				return err
			}
			infos, err := eng.List()
			if err != nil {
				return err
			}
			return writeModTable(cmd.OutOrStdout(), p, infos, terminalWidth(100))
		},
	}
}

func writeModTable(out io.Writer, p *profile.Profile, infos []engine.ModInfo, width int) error {
	if _, err := fmt.Fprintf(out, messages.ListProfileFmt, p.Name, p.GameRoot); err != nil {
		return err
	}
	if len(infos) == 0 {
		_, err := fmt.Fprintln(out, messages.ListEmpty)
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, messages.ListHeader)
	metaWidth := max(width/3, 24)
	for _, info := range infos {
		version := info.Entry.InstalledVersion
		if version == "" {
			version = messages.ListMetaNone
		}
		_, _ = fmt.Fprintf(tw, messages.ListRowFmt,
			info.Entry.ID, stateLabel(info.State), version, len(info.Entry.Files), truncate(metaText(info), metaWidth))
	}
	return tw.Flush()
}

func stateLabel(s modstate.State) string {
	label := fmt.Sprintf("%-13s", string(s))
	switch s {
	case modstate.StateEnabled:
		return okColor.Sprint(label)
	case modstate.StateDisabled, modstate.StateNotInstalled:
		return dimColor.Sprint(label)
	default:
		return failColor.Sprint(label)
	}
}

func metaText(info engine.ModInfo) string {
	switch {
	case info.MetaErr != nil:
		return info.MetaErr.Error()
	case info.Meta == nil:
		return messages.ListMetaNone
	default:
		m := info.Meta
		return fmt.Sprintf(messages.ListMetaFmt, m.Name, m.Version, m.SptVersion, m.License)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func newSelectCmd(opts *rootOptions) *cobra.Command {
	var filters []string

	cmd := &cobra.Command{
		Use:   messages.SelectUse,
		Short: messages.SelectShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := profile.ParseIdentifier(args[0])
			if err != nil {
				return err
			}
			extra, err := parseFilters(filters)
			if err != nil {
				return err
			}
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}
			choice, err := eng.Select(cmd.Context(), id, extra)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), messages.SelectResultFmt,
				id, choice.Asset.Name, choice.ReleaseTag, choice.Asset.Size, choice.Asset.DownloadURL)
			return err
		},
	}
	cmd.Flags().StringArrayVar(&filters, "filter", nil, messages.SelectFlagFilter)
	return cmd
}

func newUpgradeCmd(opts *rootOptions) *cobra.Command {
	var force, local, takeOver bool

	cmd := &cobra.Command{
		Use:     messages.UpgradeUse,
		Aliases: []string{"install"},
		Short:   messages.UpgradeShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}
			upgrade := engine.UpgradeOptions{Names: args, Force: force, TakeOver: takeOver}
			if local {
				return a.report(cmd, eng.InstallLocal(cmd.Context(), upgrade))
			}
			return a.report(cmd, eng.Upgrade(cmd.Context(), upgrade))
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, messages.UpgradeFlagForce)
	cmd.Flags().BoolVar(&takeOver, "take-over", false, messages.UpgradeFlagTakeOver)
	cmd.Flags().BoolVar(&local, "local", false, messages.UpgradeFlagLocal)
	return cmd
}

func newInstallArchiveCmd(opts *rootOptions) *cobra.Command {
	var version string
	var takeOver bool

	cmd := &cobra.Command{
		Use:   messages.InstallArchiveUse,
		Short: messages.InstallArchiveShort,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}
			p, err := eng.Profile()
			if err != nil {
				return err
			}
			entry, err := p.Find(args[0])
			if err != nil {
				return err
			}
			files, err := eng.InstallFromArchive(cmd.Context(), entry.ID, args[1], engine.InstallOptions{Version: version, TakeOver: takeOver})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), messages.InstallArchiveDoneFmt, entry.DisplayName(), len(files))
			return err
		},
	}
	cmd.Flags().StringVar(&version, "version", "", messages.InstallArchiveFlagVersion)
	cmd.Flags().BoolVar(&takeOver, "take-over", false, messages.UpgradeFlagTakeOver)
	return cmd
}

func newEnableCmd(opts *rootOptions) *cobra.Command {
	return newToggleCmd(opts, messages.EnableUse, messages.EnableShort, messages.EnablePickTitle, true)
}

func newDisableCmd(opts *rootOptions) *cobra.Command {
	return newToggleCmd(opts, messages.DisableUse, messages.DisableShort, messages.DisablePickTitle, false)
}

func newToggleCmd(opts *rootOptions, use string, short string, title string, enable bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}
			names, err := pickMods(eng, args, title, func(m profile.ModEntry) bool { return m.Enabled != enable })
			if err != nil {
				return err
			}
			if enable {
				return a.report(cmd, eng.Enable(names))
			}
			return a.report(cmd, eng.Disable(names))
		},
	}
}
