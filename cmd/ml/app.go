package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/conn-castle/modlayer/internal/config"
	"github.com/conn-castle/modlayer/internal/download"
	"github.com/conn-castle/modlayer/internal/engine"
	"github.com/conn-castle/modlayer/internal/fetch"
	"github.com/conn-castle/modlayer/internal/github"
	"github.com/conn-castle/modlayer/internal/httpx"
	"github.com/conn-castle/modlayer/internal/install"
	"github.com/conn-castle/modlayer/internal/logging"
	"github.com/conn-castle/modlayer/internal/messages"
	"github.com/conn-castle/modlayer/internal/profile"
	"github.com/conn-castle/modlayer/internal/resolve"
	"github.com/conn-castle/modlayer/internal/versiongroup"
)

const (
	apiTimeout      = 30 * time.Second
	downloadTimeout = 15 * time.Minute
)

var configDir = config.Dir

// app is the per-invocation state shared by every command.
type app struct {
	settings *config.Settings
	paths    config.Paths
	logger   *log.Logger
	store    *profile.Store
	profile  string
}

// load reads settings and opens the profile store for one command run.
func (o *rootOptions) load(cmd *cobra.Command) (*app, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}
	settings, source, err := config.Load(config.LoadOptions{ConfigFile: o.configFile, Dir: dir})
	if err != nil {
		return nil, err
	}
	logger := logging.New(cmd.ErrOrStderr(), logging.LevelForVerbosity(settings.Log.Level, o.verbose))
	if source != "" {
		logger.Debug("loaded settings", "path", source)
	}
	paths := config.DefaultPaths(dir)
	return &app{
		settings: settings,
		paths:    paths,
		logger:   logger,
		store:    profile.NewStore(paths.ProfilesPath),
		profile:  strings.TrimSpace(o.profile),
	}, nil
}

func userAgent() string {
	return fmt.Sprintf(messages.RootUserAgentFmt, Version)
}

// engine wires the release client, version resolver, downloader, and
// installer policy from settings.
func (a *app) engine() (*engine.Engine, error) {
	s := a.settings
	client := github.NewClient(
		github.WithBaseURL(s.GitHub.APIURL),
		github.WithToken(s.GitHub.Token),
		github.WithPerPage(s.GitHub.PerPage),
		github.WithHTTPClient(httpx.NewClient(apiTimeout)),
		github.WithUserAgent(userAgent()),
	)
	coordinator := fetch.NewCoordinator(client, s.Quota(), fetch.WithLogger(a.logger))

	fallback, err := versiongroup.ParseFallback(s.Filters.MinorFallback)
	if err != nil {
		return nil, err
	}
	var source versiongroup.TagSource = versiongroup.StaticTagSource(s.Versions.Tags)
	if strings.TrimSpace(s.Versions.SourceURL) != "" {
		source = versiongroup.HTTPTagSource{
			URL:         s.Versions.SourceURL,
			Client:      httpx.NewClient(apiTimeout),
			NewestFirst: s.Versions.NewestFirst,
			UserAgent:   userAgent(),
		}
	}
	versions := versiongroup.NewResolver(source, versiongroup.WithFallback(fallback), versiongroup.WithLogger(a.logger))

	policy, err := install.ParsePolicy(s.Install.ConflictPolicy)
	if err != nil {
		return nil, err
	}
	downloader := download.New(
		download.WithHTTPClient(httpx.NewClient(downloadTimeout)),
		download.WithUserAgent(userAgent()),
		download.WithMaxRetries(uint64(s.Download.MaxRetries)),
		download.WithTripThreshold(int64(s.Download.TripThreshold)),
		download.WithLogger(a.logger),
	)

	return engine.New(a.store,
		engine.WithProfile(a.profile),
		engine.WithFetcher(coordinator),
		engine.WithVersions(versions),
		engine.WithFlattenOptions(resolve.FlattenOptions{
			KnownVersions: s.Versions.Known,
			Loaders:       s.Versions.Loaders,
		}),
		engine.WithDownloader(downloader),
		engine.WithPolicy(policy),
		engine.WithParallel(s.Parallel),
		engine.WithLogger(a.logger),
	)
}
