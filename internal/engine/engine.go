// Package engine runs mod operations against the active profile: it wires
// release fetching, asset selection, download, extraction, layout, install,
// and enable/disable state into per-mod pipelines and batches.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/conn-castle/modlayer/internal/archive"
	"github.com/conn-castle/modlayer/internal/download"
	"github.com/conn-castle/modlayer/internal/fetch"
	"github.com/conn-castle/modlayer/internal/install"
	"github.com/conn-castle/modlayer/internal/logging"
	"github.com/conn-castle/modlayer/internal/messages"
	"github.com/conn-castle/modlayer/internal/modstate"
	"github.com/conn-castle/modlayer/internal/profile"
	"github.com/conn-castle/modlayer/internal/resolve"
	"github.com/conn-castle/modlayer/internal/versiongroup"
)

// DefaultParallel is the number of mods processed at once in a batch.
const DefaultParallel = 4

// Downloader fetches one asset to disk.
type Downloader interface {
	Fetch(ctx context.Context, req download.Request) (download.Result, error)
}

// StorageError reports a failure reading or writing the profile store.
// It is fatal to a batch.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf(messages.EngineStorageFmt, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Engine executes operations against one profile in a profile store.
// It is safe for concurrent use.
type Engine struct {
	store       *profile.Store
	profileName string
	fetcher     fetch.Fetcher
	versions    *versiongroup.Resolver
	flatten     resolve.FlattenOptions
	downloader  Downloader
	extractOpts []archive.Option
	installSys  install.System
	stateSys    modstate.System
	policy      install.Policy
	parallel    int
	logger      *log.Logger
	now         func() time.Time

	// mu serializes profile read-modify-write cycles within the process.
	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithProfile selects a named profile instead of the active one.
func WithProfile(name string) Option {
	return func(e *Engine) { e.profileName = name }
}

// WithFetcher sets the release fetcher.
func WithFetcher(f fetch.Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// WithVersions sets the version group resolver used by minor filters.
func WithVersions(r *versiongroup.Resolver) Option {
	return func(e *Engine) { e.versions = r }
}

// WithFlattenOptions tunes how releases become candidates.
func WithFlattenOptions(opts resolve.FlattenOptions) Option {
	return func(e *Engine) { e.flatten = opts }
}

// WithDownloader sets the asset downloader.
func WithDownloader(d Downloader) Option {
	return func(e *Engine) { e.downloader = d }
}

// WithExtractorOptions adds options to every extractor the engine builds.
func WithExtractorOptions(opts ...archive.Option) Option {
	return func(e *Engine) { e.extractOpts = append(e.extractOpts, opts...) }
}

// WithInstallSystem overrides the installer's filesystem.
func WithInstallSystem(sys install.System) Option {
	return func(e *Engine) { e.installSys = sys }
}

// WithStateSystem overrides the enable/disable filesystem.
func WithStateSystem(sys modstate.System) Option {
	return func(e *Engine) { e.stateSys = sys }
}

// WithPolicy sets the default conflict policy.
func WithPolicy(p install.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithParallel bounds how many mods a batch processes at once.
func WithParallel(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallel = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the timestamp source for manifest records.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an engine over store.
func New(store *profile.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New(messages.EngineStoreRequired)
	}
	e := &Engine{
		store:    store,
		parallel: DefaultParallel,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDiscard(e.logger)
	if e.downloader == nil {
		e.downloader = download.New(download.WithLogger(e.logger))
	}
	return e, nil
}

// session is a snapshot of the selected profile plus the components bound
// to its game root.
type session struct {
	profile   *profile.Profile
	gameRoot  string
	installer *install.Installer
	states    *modstate.Manager
	extractor *archive.Extractor
}

func (e *Engine) pick(doc *profile.Document) (*profile.Profile, error) {
	if e.profileName != "" {
		return doc.Profile(e.profileName)
	}
	return doc.Active()
}

func (e *Engine) open() (*session, error) {
	doc, err := e.store.Load()
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	p, err := e.pick(doc)
	if err != nil {
		return nil, err
	}
	root, err := p.ResolvedGameRoot()
	if err != nil {
		return nil, err
	}

	installOpts := []install.Option{install.WithLogger(e.logger)}
	if e.installSys != nil {
		installOpts = append(installOpts, install.WithSystem(e.installSys))
	}
	inst, err := install.New(root, installOpts...)
	if err != nil {
		return nil, err
	}
	stateOpts := []modstate.Option{modstate.WithLogger(e.logger)}
	if e.stateSys != nil {
		stateOpts = append(stateOpts, modstate.WithSystem(e.stateSys))
	}
	states, err := modstate.New(root, stateOpts...)
	if err != nil {
		return nil, err
	}
	extractOpts := append([]archive.Option{archive.WithLogger(e.logger)}, e.extractOpts...)
	return &session{
		profile:   p,
		gameRoot:  root,
		installer: inst,
		states:    states,
		extractor: archive.NewExtractor(inst.StagingRoot(), extractOpts...),
	}, nil
}

// commit applies fn to the selected profile under the store lock and saves
// the result. Errors returned by fn are passed through unchanged and nothing
// is written; store failures become StorageError.
func (e *Engine) commit(fn func(p *profile.Profile) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var fnErr error
	err := e.store.Update(func(doc *profile.Document) error {
		p, err := e.pick(doc)
		if err != nil {
			fnErr = err
			return err
		}
		if err := fn(p); err != nil {
			fnErr = err
			return err
		}
		return nil
	})
	if err != nil && fnErr == nil {
		return &StorageError{Err: err}
	}
	return err
}

// Profile returns a snapshot of the selected profile.
func (e *Engine) Profile() (*profile.Profile, error) {
	s, err := e.open()
	if err != nil {
		return nil, err
	}
	return s.profile, nil
}
