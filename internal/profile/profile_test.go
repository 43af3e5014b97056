package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/conn-castle/modlayer/internal/resolve"
)

func mustID(t *testing.T, raw string) ModIdentifier {
	t.Helper()
	id, err := ParseIdentifier(raw)
	require.NoError(t, err)
	return id
}

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		raw     string
		want    ModIdentifier
		wantErr bool
	}{
		{raw: "Solarint/SAIN", want: ModIdentifier{Owner: "Solarint", Repo: "SAIN"}},
		{raw: "https://github.com/Solarint/SAIN", want: ModIdentifier{Owner: "Solarint", Repo: "SAIN"}},
		{raw: "github.com/Solarint/SAIN.git", want: ModIdentifier{Owner: "Solarint", Repo: "SAIN"}},
		{raw: "pkg:github/solarint/sain", want: ModIdentifier{Owner: "solarint", Repo: "sain"}},
		{raw: "pkg:npm/left-pad", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "justone", wantErr: true},
		{raw: "a/b/c", wantErr: true},
		{raw: "owner/..", wantErr: true},
		{raw: "own er/repo", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseIdentifier(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentifierComparisonAndPurl(t *testing.T) {
	a := mustID(t, "Solarint/SAIN")
	b := mustID(t, "solarint/sain")
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "Solarint/SAIN", a.String())
	assert.True(t, strings.HasPrefix(a.PackageURL(), "pkg:github/"))

	round, err := ParseIdentifier(a.PackageURL())
	require.NoError(t, err)
	assert.True(t, a.Equal(round))
}

func TestFindByRepoDisplayAndAmbiguity(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := Profile{Name: "main", GameRoot: "/game"}
	require.NoError(t, p.Add(NewModEntry(mustID(t, "alice/Looting"), now)))
	require.NoError(t, p.Add(NewModEntry(mustID(t, "bob/Looting"), now)))
	sain := NewModEntry(mustID(t, "Solarint/SAIN"), now)
	sain.Name = "Solarint's AI"
	require.NoError(t, p.Add(sain))

	m, err := p.Find("solarint's ai")
	require.NoError(t, err)
	assert.Equal(t, "SAIN", m.ID.Repo)

	m, err = p.Find("sain")
	require.NoError(t, err)
	assert.Equal(t, "Solarint", m.ID.Owner)

	m, err = p.Find("bob/looting")
	require.NoError(t, err)
	assert.Equal(t, "bob", m.ID.Owner)

	_, err = p.Find("Looting")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alice/Looting")

	_, err = p.Find("missing")
	require.Error(t, err)
}

func TestAddRejectsDuplicateCaseInsensitive(t *testing.T) {
	p := Profile{Name: "main", GameRoot: "/game"}
	require.NoError(t, p.Add(NewModEntry(mustID(t, "a/b"), time.Now())))
	require.Error(t, p.Add(NewModEntry(mustID(t, "A/B"), time.Now())))
	assert.True(t, p.Remove(mustID(t, "a/B")))
	assert.False(t, p.Remove(mustID(t, "a/B")))
}

func TestOwnershipViolationsAndRelease(t *testing.T) {
	a := ModEntry{ID: ModIdentifier{Owner: "o", Repo: "A"}, Enabled: true, Files: []string{"BepInEx/plugins/Foo.bin", "BepInEx/plugins/A.dll"}}
	b := ModEntry{ID: ModIdentifier{Owner: "o", Repo: "B"}, Enabled: true, Files: []string{"BepInEx/plugins/Foo.bin"}}
	c := ModEntry{ID: ModIdentifier{Owner: "o", Repo: "C"}, Enabled: false, Files: []string{"BepInEx/plugins/A.dll"}}
	p := Profile{Name: "main", GameRoot: "/game", Mods: []ModEntry{a, b, c}}

	violations := p.CheckOwnership()
	require.Len(t, violations, 1)
	assert.Equal(t, "BepInEx/plugins/Foo.bin", violations[0].Path)
	require.Error(t, p.OwnershipError())

	manifest := p.EnabledManifest()
	owner, ok := manifest.OwnerOf("BepInEx/plugins/Foo.bin", b.ID)
	require.True(t, ok)
	assert.Equal(t, "A", owner.ID.Repo)
	_, ok = manifest.OwnerOf("BepInEx/plugins/A.dll", a.ID)
	assert.False(t, ok)

	p.ReleasePaths(a.ID, []string{"BepInEx/plugins/Foo.bin"})
	assert.Equal(t, []string{"BepInEx/plugins/A.dll"}, p.Mod(a.ID).Files)
	assert.NoError(t, p.OwnershipError())
}

func TestConflictErrorNamesAction(t *testing.T) {
	owner := Owner{ID: ModIdentifier{Owner: "alice", Repo: "One"}, Name: "One"}
	claimant := ModIdentifier{Owner: "bob", Repo: "Two"}

	installErr := &ConflictError{Owner: owner, Claimant: claimant, Path: "BepInEx/plugins/Foo.bin", Action: ConflictInstall}
	assert.Contains(t, installErr.Error(), "--take-over")
	assert.Contains(t, installErr.Error(), "alice/One")

	enableErr := &ConflictError{Owner: owner, Claimant: claimant, Path: "BepInEx/plugins/Foo.bin", Action: ConflictEnable}
	assert.True(t, strings.HasPrefix(enableErr.Error(), "cannot enable bob/Two"))

	assert.True(t, IsConflict(fmt.Errorf("wrapped: %w", enableErr)))
	assert.False(t, IsConflict(errors.New("other")))
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "profiles.toml"))

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, doc.Profiles)

	now := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, store.Update(func(doc *Document) error {
		p := Profile{
			Name:        "main",
			GameRoot:    "~/spt",
			GameVersion: "3.10.5",
			Filters:     []resolve.Filter{resolve.GameVersionMinor("3.10.5")},
		}
		entry := NewModEntry(ModIdentifier{Owner: "Solarint", Repo: "SAIN"}, now)
		entry.Files = []string{"BepInEx/plugins/SAIN.dll"}
		entry.InstalledVersion = "v2.0.0"
		p.Mods = append(p.Mods, entry)
		return doc.AddProfile(p)
	}))

	loaded, err := store.Load()
	require.NoError(t, err)
	active, err := loaded.Active()
	require.NoError(t, err)
	assert.Equal(t, "main", active.Name)
	require.Len(t, active.Mods, 1)
	assert.Equal(t, ModIdentifier{Owner: "Solarint", Repo: "SAIN"}, active.Mods[0].ID)
	assert.Equal(t, []string{"BepInEx/plugins/SAIN.dll"}, active.Mods[0].Files)
	assert.True(t, active.Mods[0].AddedAt.Equal(now))
	assert.Equal(t, []resolve.Filter{resolve.GameVersionMinor("3.10.5")}, active.Filters)

	root, err := active.ResolvedGameRoot()
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(root, "~"))
}

func TestUpdateDoesNotWriteOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.toml")
	store := NewStore(path)

	boom := errors.New("boom")
	err := store.Update(func(doc *Document) error { return boom })
	require.ErrorIs(t, err, boom)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	data := []byte("schema_version = 1\nbogus = true\n")
	_, err := Parse(data, "profiles.toml")
	require.ErrorIs(t, err, ErrStoreValidation)
}

func TestParseRejectsFutureSchema(t *testing.T) {
	_, err := Parse([]byte("schema_version = 99\n"), "profiles.toml")
	require.ErrorIs(t, err, ErrStoreValidation)
}

func TestParseRejectsMissingActive(t *testing.T) {
	data := []byte("schema_version = 1\nactive_profile = \"ghost\"\n")
	_, err := Parse(data, "profiles.toml")
	require.ErrorIs(t, err, ErrStoreValidation)
}

func TestParseRejectsInvalidFilter(t *testing.T) {
	data := []byte(`schema_version = 1

[[profiles]]
name = "main"
game_root = "/game"
game_version = "3.10"

[[profiles.filters]]
kind = "filename"
pattern = "["
`)
	_, err := Parse(data, "profiles.toml")
	require.ErrorIs(t, err, ErrStoreValidation)
}

func TestRemoveProfileMovesActive(t *testing.T) {
	doc := &Document{}
	require.NoError(t, doc.AddProfile(Profile{Name: "a", GameRoot: "/a"}))
	require.NoError(t, doc.AddProfile(Profile{Name: "b", GameRoot: "/b"}))
	assert.Equal(t, "a", doc.ActiveProfile)
	require.Error(t, doc.AddProfile(Profile{Name: "A", GameRoot: "/x"}))

	require.NoError(t, doc.Switch("B"))
	assert.Equal(t, "b", doc.ActiveProfile)
	require.NoError(t, doc.RemoveProfile("b"))
	assert.Equal(t, "a", doc.ActiveProfile)
	require.Error(t, doc.Switch("zzz"))
}

func TestLockTimeout(t *testing.T) {
	origFlock, origSleep, origTimeout := flockFn, lockSleep, lockWaitTimeout
	t.Cleanup(func() {
		flockFn, lockSleep, lockWaitTimeout = origFlock, origSleep, origTimeout
	})
	flockFn = func(fd int, how int) error {
		if how&unix.LOCK_UN != 0 {
			return nil
		}
		return unix.EWOULDBLOCK
	}
	lockSleep = func(time.Duration) {}
	lockWaitTimeout = -time.Second

	store := NewStore(filepath.Join(t.TempDir(), "profiles.toml"))
	err := store.Save(&Document{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock")
}
