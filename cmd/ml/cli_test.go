package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/modlayer/internal/config"
	"github.com/conn-castle/modlayer/internal/github"
	"github.com/conn-castle/modlayer/internal/profile"
	"github.com/conn-castle/modlayer/internal/prompt"
	"github.com/conn-castle/modlayer/internal/testutil"
)

// cliEnv runs ml against a temporary config dir, a temporary game root, and
// a fake GitHub serving releases and asset downloads.
type cliEnv struct {
	t         *testing.T
	root      string
	configDir string
	server    *httptest.Server
	releases  map[string][]github.Release
	assets    map[string][]byte
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	env := &cliEnv{
		t:         t,
		root:      t.TempDir(),
		configDir: t.TempDir(),
		releases:  make(map[string][]github.Release),
		assets:    make(map[string][]byte),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/repos/"), "/releases")
		releases, ok := env.releases[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(releases)
	})
	mux.HandleFunc("/dl/", func(w http.ResponseWriter, r *http.Request) {
		data, ok := env.assets[path.Base(r.URL.Path)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	})
	env.server = httptest.NewServer(mux)
	t.Cleanup(env.server.Close)

	t.Setenv(config.DirEnv, env.configDir)
	t.Setenv("MODLAYER_GITHUB_API_URL", env.server.URL)
	t.Setenv("MODLAYER_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("MODLAYER_PARALLEL", "")
	return env
}

// publish serves one release for owner/repo whose single asset unpacks files.
func (env *cliEnv) publish(repo string, asset string, files map[string]string) {
	env.t.Helper()
	archive := filepath.Join(env.t.TempDir(), asset)
	testutil.WriteZip(env.t, archive, files)
	data, err := os.ReadFile(archive)
	require.NoError(env.t, err)
	env.assets[asset] = data
	env.releases[repo] = append(env.releases[repo], github.Release{
		Tag:         "v1.0.0",
		Name:        "1.0.0",
		PublishedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Assets: []github.Asset{{
			ID:          int64(len(env.assets)),
			Name:        asset,
			DownloadURL: env.server.URL + "/dl/" + asset,
			Size:        int64(len(data)),
		}},
	})
}

func (env *cliEnv) run(args ...string) (string, error) {
	var out bytes.Buffer
	err := execute(append([]string{"ml"}, args...), &out, &out)
	return out.String(), err
}

func (env *cliEnv) mustRun(args ...string) string {
	env.t.Helper()
	out, err := env.run(args...)
	require.NoError(env.t, err, out)
	return out
}

func (env *cliEnv) profile(name string) *profile.Profile {
	env.t.Helper()
	doc, err := profile.NewStore(config.DefaultPaths(env.configDir).ProfilesPath).Load()
	require.NoError(env.t, err)
	p, err := doc.Profile(name)
	require.NoError(env.t, err)
	return p
}

type fakeUI struct {
	interactive bool
	pick        []string
	confirm     bool
	options     []string
	confirmed   int
}

func (f *fakeUI) Interactive() bool { return f.interactive }

func (f *fakeUI) MultiSelect(_ string, options []string, selected *[]string) error {
	f.options = options
	*selected = f.pick
	return nil
}

func (f *fakeUI) Confirm(_ string, value *bool) error {
	f.confirmed++
	*value = f.confirm
	return nil
}

func withUI(t *testing.T, ui *fakeUI) {
	t.Helper()
	orig := newPromptUI
	t.Cleanup(func() { newPromptUI = orig })
	newPromptUI = func() promptUI { return ui }
}

func TestModLifecycle(t *testing.T) {
	env := newCLIEnv(t)
	env.publish("alice/One", "One.zip", map[string]string{"BepInEx/plugins/One.dll": "one"})
	plugin := filepath.Join(env.root, "BepInEx", "plugins", "One.dll")

	out := env.mustRun("profile", "create", "main", "--game-root", env.root)
	assert.Contains(t, out, "created profile main")

	out = env.mustRun("add", "alice/One")
	assert.Contains(t, out, "added")
	assert.Contains(t, out, "One")

	out = env.mustRun("upgrade")
	assert.Contains(t, out, "installed")
	assert.FileExists(t, plugin)
	entry := env.profile("main").Mods[0]
	assert.Equal(t, "v1.0.0", entry.InstalledVersion)
	assert.Equal(t, "One.zip", entry.InstalledAsset)

	out = env.mustRun("install")
	assert.Contains(t, out, "unchanged")

	out = env.mustRun("list")
	assert.Contains(t, out, "alice/One")
	assert.Contains(t, out, "enabled")
	assert.Contains(t, out, "v1.0.0")

	env.mustRun("disable", "One")
	assert.NoFileExists(t, plugin)
	assert.False(t, env.profile("main").Mods[0].Enabled)
	assert.Contains(t, env.mustRun("list"), "disabled")

	env.mustRun("enable", "alice/One")
	assert.FileExists(t, plugin)

	require.NoError(t, os.Remove(plugin))
	out = env.mustRun("upgrade", "--local")
	assert.Contains(t, out, "installed")
	assert.FileExists(t, plugin)

	env.mustRun("remove", "One")
	assert.NoFileExists(t, plugin)
	assert.Empty(t, env.profile("main").Mods)
}

func TestAddInstallFlag(t *testing.T) {
	env := newCLIEnv(t)
	env.publish("alice/One", "One.zip", map[string]string{"BepInEx/plugins/One.dll": "one"})
	env.mustRun("profile", "create", "main", "--game-root", env.root)

	out := env.mustRun("add", "alice/One", "--install")
	assert.Contains(t, out, "added")
	assert.Contains(t, out, "installed")
	assert.FileExists(t, filepath.Join(env.root, "BepInEx", "plugins", "One.dll"))
}

func TestAddUnknownRepositoryFails(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("profile", "create", "main", "--game-root", env.root)

	out, err := env.run("add", "alice/Nope")
	var silent *SilentExitError
	require.ErrorAs(t, err, &silent)
	assert.Equal(t, 1, silent.Code)
	assert.Contains(t, out, "failed")
	assert.Empty(t, env.profile("main").Mods)
}

func TestUpgradeIsolatesFailingMods(t *testing.T) {
	env := newCLIEnv(t)
	env.publish("alice/One", "One.zip", map[string]string{"BepInEx/plugins/One.dll": "one"})
	env.mustRun("profile", "create", "main", "--game-root", env.root)
	env.mustRun("add", "alice/One")
	env.mustRun("add", "--offline", "bob/Gone")

	out, err := env.run("upgrade")
	var silent *SilentExitError
	require.ErrorAs(t, err, &silent)
	assert.Contains(t, out, "installed")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "1 ok, 1 failed, 0 aborted")
	assert.FileExists(t, filepath.Join(env.root, "BepInEx", "plugins", "One.dll"))
}

func TestSelectPrintsChoice(t *testing.T) {
	env := newCLIEnv(t)
	env.publish("alice/One", "One.zip", map[string]string{"BepInEx/plugins/One.dll": "one"})
	env.mustRun("profile", "create", "main", "--game-root", env.root)

	out := env.mustRun("select", "alice/One")
	assert.Contains(t, out, "One.zip")
	assert.Contains(t, out, "v1.0.0")

	_, err := env.run("select", "alice/One", "--filter", "bogus=1")
	assert.Error(t, err)
}

func TestInstallArchiveCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("profile", "create", "main", "--game-root", env.root)
	env.mustRun("add", "--offline", "alice/One")
	archive := filepath.Join(t.TempDir(), "One-local.zip")
	testutil.WriteZip(t, archive, map[string]string{"BepInEx/plugins/One.dll": "local"})

	out := env.mustRun("install-archive", "One", archive, "--version", "1.0.0-local")
	assert.Contains(t, out, "installed One: 1 files")
	assert.Equal(t, "1.0.0-local", env.profile("main").Mods[0].InstalledVersion)
}

func TestToggleWithoutNamesNeedsTerminal(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("profile", "create", "main", "--game-root", env.root)
	env.mustRun("add", "--offline", "alice/One")
	withUI(t, &fakeUI{interactive: false})

	_, err := env.run("disable")
	require.ErrorIs(t, err, prompt.ErrNotInteractive)
	assert.True(t, env.profile("main").Mods[0].Enabled)
}

func TestDisablePickerOffersEnabledMods(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("profile", "create", "main", "--game-root", env.root)
	env.mustRun("add", "--offline", "alice/One", "bob/Two")
	env.mustRun("disable", "Two")

	ui := &fakeUI{interactive: true, pick: []string{"alice/One"}}
	withUI(t, ui)
	env.mustRun("disable")

	assert.Equal(t, []string{"alice/One"}, ui.options)
	for _, m := range env.profile("main").Mods {
		assert.False(t, m.Enabled, m.ID.String())
	}
}

func TestRemovePickerAsksForConfirmation(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("profile", "create", "main", "--game-root", env.root)
	env.mustRun("add", "--offline", "alice/One")

	ui := &fakeUI{interactive: true, pick: []string{"alice/One"}, confirm: false}
	withUI(t, ui)
	out := env.mustRun("remove")
	assert.Contains(t, out, "nothing removed")
	assert.Equal(t, 1, ui.confirmed)
	assert.Len(t, env.profile("main").Mods, 1)

	ui.confirm = true
	env.mustRun("remove")
	assert.Empty(t, env.profile("main").Mods)
}

func TestProfileCommands(t *testing.T) {
	env := newCLIEnv(t)
	other := t.TempDir()

	out, err := env.run("profile", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no profiles")

	env.mustRun("profile", "create", "main", "--game-root", env.root)
	env.mustRun("profile", "create", "alt", "--game-root", other, "--game-version", "3.9")

	out = env.mustRun("profile", "list")
	assert.Contains(t, out, "main (active)")
	assert.Contains(t, out, "alt")

	out = env.mustRun("profile", "switch", "ALT")
	assert.Contains(t, out, "active profile is now alt")

	out = env.mustRun("profile", "configure", "--game-version", "3.10", "--filter", "loader=bepinex")
	assert.Contains(t, out, "updated profile alt")
	p := env.profile("alt")
	assert.Equal(t, "3.10", p.GameVersion)
	require.Len(t, p.Filters, 1)

	out = env.mustRun("profile", "show")
	assert.Contains(t, out, "3.10")
	assert.Contains(t, out, "Loader Prefer (bepinex)")

	env.mustRun("profile", "configure", "alt", "--clear-filters")
	assert.Empty(t, env.profile("alt").Filters)

	_, err = env.run("profile", "configure")
	assert.Error(t, err)

	env.mustRun("profile", "delete", "alt")
	out = env.mustRun("profile", "show")
	assert.Contains(t, out, "main")
}

func TestProfileFlagSelectsProfile(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("profile", "create", "main", "--game-root", env.root)
	env.mustRun("profile", "create", "alt", "--game-root", t.TempDir())

	env.mustRun("--profile", "alt", "add", "--offline", "alice/One")
	assert.Empty(t, env.profile("main").Mods)
	assert.Len(t, env.profile("alt").Mods, 1)
}

func TestProfileCreateRejectsMissingGameRoot(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run("profile", "create", "main", "--game-root", filepath.Join(env.root, "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestInvalidSettingsAreReported(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("MODLAYER_PARALLEL", "0")
	_, err := env.run("list")
	require.ErrorIs(t, err, config.ErrConfigValidation)
}

func TestVersionCommand(t *testing.T) {
	env := newCLIEnv(t)
	out := env.mustRun("version")
	assert.Contains(t, out, Version)
}
