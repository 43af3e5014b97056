package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conn-castle/modlayer/internal/config"
	"github.com/conn-castle/modlayer/internal/messages"
	"github.com/conn-castle/modlayer/internal/profile"
	"github.com/conn-castle/modlayer/internal/resolve"
)

func newProfileCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   messages.ProfileUse,
		Short: messages.ProfileShort,
	}
	cmd.AddCommand(
		newProfileCreateCmd(opts),
		newProfileShowCmd(opts),
		newProfileListCmd(opts),
		newProfileSwitchCmd(opts),
		newProfileConfigureCmd(opts),
		newProfileDeleteCmd(opts),
	)
	return cmd
}

// gameRootPath expands and absolutizes raw and checks that it is a directory.
func gameRootPath(raw string) (string, error) {
	expanded, err := config.ExpandPath(raw)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf(messages.ProfileGameRootMissingFmt, abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf(messages.ProfileGameRootMissingFmt, abs, errors.New("not a directory"))
	}
	return abs, nil
}

// target returns the named profile, the --profile flag's profile, or the
// active one, in that order.
func (a *app) target(doc *profile.Document, args []string) (*profile.Profile, error) {
	switch {
	case len(args) > 0:
		return doc.Profile(args[0])
	case a.profile != "":
		return doc.Profile(a.profile)
	default:
		return doc.Active()
	}
}

func newProfileCreateCmd(opts *rootOptions) *cobra.Command {
	var gameRoot, gameVersion string
	var filters []string

	cmd := &cobra.Command{
		Use:   messages.ProfileCreateUse,
		Short: messages.ProfileCreateShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := gameRootPath(gameRoot)
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
			p := profile.Profile{
				Name:        strings.TrimSpace(args[0]),
				GameRoot:    root,
				GameVersion: strings.TrimSpace(gameVersion),
				Filters:     parsed,
			}
			if err := a.store.Update(func(doc *profile.Document) error { return doc.AddProfile(p) }); err != nil {
				return err
			}
			a.logger.Info("created profile", "profile", p.Name, "store", a.store.Path())
			_, err = fmt.Fprintf(cmd.OutOrStdout(), messages.ProfileCreatedFmt, p.Name, p.GameRoot)
			return err
		},
	}
	cmd.Flags().StringVar(&gameRoot, "game-root", "", messages.ProfileFlagGameRoot)
	cmd.Flags().StringVar(&gameVersion, "game-version", "", messages.ProfileFlagGameVersion)
	cmd.Flags().StringArrayVar(&filters, "filter", nil, messages.ProfileFlagFilter)
	_ = cmd.MarkFlagRequired("game-root")
	return cmd
}

func formatFilters(filters []resolve.Filter) string {
	if len(filters) == 0 {
		return messages.ListMetaNone
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, ", ")
}

func newProfileShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.ProfileShowUse,
		Short: messages.ProfileShowShort,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			doc, err := a.store.Load()
			if err != nil {
				return err
			}
			p, err := a.target(doc, args)
			if err != nil {
				return err
			}
			version := p.GameVersion
			if version == "" {
				version = messages.ListMetaNone
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), messages.ProfileShowFmt,
				p.Name, p.GameRoot, version, len(p.Mods), formatFilters(p.Filters))
			return err
		},
	}
}

func newProfileListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.ProfileListUse,
		Short: messages.ProfileListShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			doc, err := a.store.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(doc.Profiles) == 0 {
				_, err := fmt.Fprintln(out, messages.ProfileListEmpty)
				return err
			}
			for _, p := range doc.Profiles {
				line := p.Name
				if strings.EqualFold(p.Name, doc.ActiveProfile) {
					line = okColor.Sprint(p.Name + messages.ProfileActiveTag)
				}
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newProfileSwitchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.ProfileSwitchUse,
		Short: messages.ProfileSwitchShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			var name string
			err = a.store.Update(func(doc *profile.Document) error {
				if err := doc.Switch(args[0]); err != nil {
					return err
				}
				name = doc.ActiveProfile
				return nil
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), messages.ProfileSwitchedFmt, name)
			return err
		},
	}
}

func newProfileConfigureCmd(opts *rootOptions) *cobra.Command {
	var gameRoot, gameVersion string
	var filters []string
	var clearFilters bool

	cmd := &cobra.Command{
		Use:   messages.ProfileConfigureUse,
		Short: messages.ProfileConfigureShort,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("game-root") && !flags.Changed("game-version") && !flags.Changed("filter") && !clearFilters {
				return errors.New(messages.ProfileNothingToSet)
			}
			var root string
			if flags.Changed("game-root") {
				var err error
				if root, err = gameRootPath(gameRoot); err != nil {
					return err
				}
			}
			parsed, err := parseFilters(filters)
			if err != nil {
				return err
			}
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			var name string
			err = a.store.Update(func(doc *profile.Document) error {
				p, err := a.target(doc, args)
				if err != nil {
					return err
				}
				if root != "" {
					p.GameRoot = root
				}
				if flags.Changed("game-version") {
					p.GameVersion = strings.TrimSpace(gameVersion)
				}
				if clearFilters {
					p.Filters = nil
				}
				p.Filters = append(p.Filters, parsed...)
				name = p.Name
				return p.Validate()
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), messages.ProfileConfiguredFmt, name)
			return err
		},
	}
	cmd.Flags().StringVar(&gameRoot, "game-root", "", messages.ProfileFlagGameRoot)
	cmd.Flags().StringVar(&gameVersion, "game-version", "", messages.ProfileFlagGameVersion)
	cmd.Flags().StringArrayVar(&filters, "filter", nil, messages.ProfileFlagFilter)
	cmd.Flags().BoolVar(&clearFilters, "clear-filters", false, messages.ProfileFlagClearFilters)
	return cmd
}

func newProfileDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.ProfileDeleteUse,
		Short: messages.ProfileDeleteShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := a.store.Update(func(doc *profile.Document) error { return doc.RemoveProfile(args[0]) }); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), messages.ProfileDeletedFmt, args[0])
			return err
		},
	}
}
