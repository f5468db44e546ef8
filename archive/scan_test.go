package archive

import (
	"archive/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeZip(t *testing.T, names ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for _, name := range names {
		entry, err := w.Create(name)
		require.NoError(t, err)
		if !strings.HasSuffix(name, "/") {
			_, err = entry.Write([]byte(name))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func writeFolder(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			require.NoError(t, os.MkdirAll(path, 0755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(name), 0644))
	}
	return root
}

func scanPath(t *testing.T, path string) *ScanResult {
	t.Helper()
	source, err := ParseSource(path)
	require.NoError(t, err)
	result, err := Scan(source)
	require.NoError(t, err)
	return result
}

func TestScanClassification(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		want    ScanResult
		// rootAssets marks cases where a folder source is its own asset folder.
		rootAssets bool
	}{
		{
			name:    "package only",
			entries: []string{"game.apk", "readme.txt"},
			want:    ScanResult{HasPackage: true, PackageFileName: "game.apk"},
		},
		{
			name:    "package and assets",
			entries: []string{"game.apk", "obb/com.example.app/main.obb"},
			want: ScanResult{
				HasPackage:      true,
				HasAssets:       true,
				PackageFileName: "game.apk",
				AssetFolderName: "com.example.app",
			},
		},
		{
			name:    "nested asset folder",
			entries: []string{"Release/v2/Game.APK", "Release/v2/data/com.foo.bar/main.1.com.foo.bar.obb"},
			want: ScanResult{
				HasPackage:      true,
				HasAssets:       true,
				PackageFileName: "Game.APK",
				AssetFolderName: "com.foo.bar",
			},
		},
		{
			name:    "non obb file below token folder",
			entries: []string{"OBB/com.foo/payload.bin"},
			want:    ScanResult{HasAssets: true, AssetFolderName: "com.foo"},
		},
		{
			name:    "empty folder below token folder",
			entries: []string{"x.apk", "obb/com.empty/"},
			want: ScanResult{
				HasPackage:      true,
				HasAssets:       true,
				PackageFileName: "x.apk",
				AssetFolderName: "com.empty",
			},
		},
		{
			name:       "root level obb belongs to a folder source only",
			entries:    []string{"a.apk", "main.obb"},
			want:       ScanResult{HasPackage: true, PackageFileName: "a.apk"},
			rootAssets: true,
		},
		{
			name:    "nested asset folder beats a root level folder candidate",
			entries: []string{"game.apk", "obb/com.example.app/main.obb"},
			want: ScanResult{
				HasPackage:      true,
				HasAssets:       true,
				PackageFileName: "game.apk",
				AssetFolderName: "com.example.app",
			},
		},
		{
			name:    "shallowest package wins",
			entries: []string{"a/deep/first.apk", "z.apk"},
			want:    ScanResult{HasPackage: true, PackageFileName: "z.apk"},
		},
		{
			name:    "lexicographic order breaks ties",
			entries: []string{"b.apk", "a.apk"},
			want:    ScanResult{HasPackage: true, PackageFileName: "a.apk"},
		},
		{
			name:    "nothing installable",
			entries: []string{"docs/readme.txt"},
			want:    ScanResult{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/zip", func(t *testing.T) {
			assert.Equal(t, tt.want, *scanPath(t, writeZip(t, tt.entries...)))
		})
		t.Run(tt.name+"/folder", func(t *testing.T) {
			root := writeFolder(t, tt.entries...)
			want := tt.want
			if tt.rootAssets {
				want.HasAssets = true
				want.AssetFolderName = filepath.Base(root)
			}
			assert.Equal(t, want, *scanPath(t, root))
		})
	}
}

func TestScanIsIdempotent(t *testing.T) {
	path := writeZip(t, "b/game.apk", "a/obb/com.x/main.obb", "a/obb/com.y/main.obb")
	first := scanPath(t, path)
	second := scanPath(t, path)
	assert.Equal(t, first, second)
	assert.Equal(t, "com.x", first.AssetFolderName)
}

func TestScanErrors(t *testing.T) {
	dir := t.TempDir()

	tarPath := filepath.Join(dir, "bundle.tar")
	require.NoError(t, os.WriteFile(tarPath, []byte("x"), 0644))
	_, err := ParseSource(tarPath)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ParseSource(filepath.Join(dir, "missing.zip"))
	assert.ErrorIs(t, err, ErrRead)

	corrupt := filepath.Join(dir, "corrupt.zip")
	require.NoError(t, os.WriteFile(corrupt, []byte("definitely not a zip archive"), 0644))
	source, err := ParseSource(corrupt)
	require.NoError(t, err)
	_, err = Scan(source)
	assert.ErrorIs(t, err, ErrRead)
}

func TestLocate(t *testing.T) {
	root := writeFolder(t, "bundle/game.apk", "bundle/obb/com.example.app/main.obb", "bundle/readme.txt")
	layout, err := Locate(root, SourceFolder)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "bundle", "game.apk"), layout.PackagePath)
	assert.Equal(t, filepath.Join(root, "bundle", "obb", "com.example.app"), layout.AssetDir)

	empty, err := Locate(t.TempDir(), SourceFolder)
	require.NoError(t, err)
	assert.Empty(t, empty.PackagePath)
	assert.Empty(t, empty.AssetDir)
}

func TestLocateRootLevelAssets(t *testing.T) {
	root := filepath.Join(t.TempDir(), "com.example.app")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "game.apk"), []byte("apk"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.1.com.example.app.obb"), []byte("obb"), 0644))

	layout, err := Locate(root, SourceFolder)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "game.apk"), layout.PackagePath)
	assert.Equal(t, root, layout.AssetDir)

	assert.Equal(t, ScanResult{
		HasPackage:      true,
		HasAssets:       true,
		PackageFileName: "game.apk",
		AssetFolderName: "com.example.app",
	}, *scanPath(t, root))

	extracted, err := Locate(root, SourceArchive)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "game.apk"), extracted.PackagePath)
	assert.Empty(t, extracted.AssetDir)
}

func TestCountRelevant(t *testing.T) {
	path := writeZip(t, "game.apk", "obb/com.x/main.obb", "obb/com.x/patch.obb", "readme.txt", "obb/")
	count, err := CountRelevant(path, FormatZip)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestFormatFamily(t *testing.T) {
	for path, want := range map[string]Family{
		"a.zip": FamilySevenZip,
		"a.7Z":  FamilySevenZip,
		"a.rar": FamilyRar,
	} {
		format, err := FormatOf(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, format.Family(), path)
	}
}
