package archive

import (
	"context"
	"fmt"
	"github.com/mholt/archiver/v4"
	"io/fs"
	"os"
	"path/filepath"
)

type ScanResult struct {
	HasPackage      bool   `json:"hasPackage" yaml:"hasPackage"`
	HasAssets       bool   `json:"hasAssets" yaml:"hasAssets"`
	PackageFileName string `json:"packageFileName,omitempty" yaml:"packageFileName,omitempty"`
	AssetFolderName string `json:"assetFolderName,omitempty" yaml:"assetFolderName,omitempty"`
}

// Layout is where the installable parts of an extracted bundle live on disk.
type Layout struct {
	PackagePath string
	AssetDir    string
}

// Scan classifies the contents of source without extracting anything.
func Scan(source *Source) (*ScanResult, error) {
	var t *tree
	var err error
	rootName := ""
	if source.IsArchive() {
		t, err = listArchive(source.Path, source.Format)
	} else {
		t, err = listFolder(source.Path)
		rootName = folderName(source.Path)
	}
	if err != nil {
		return nil, err
	}
	return t.classify(rootName).result(), nil
}

// Locate finds the package file and asset folder below dir. kind tells
// whether dir is a folder source, whose top-level asset files make dir itself
// the asset folder, or the extraction of an archive, whose root never is.
func Locate(dir string, kind SourceKind) (*Layout, error) {
	t, err := listFolder(dir)
	if err != nil {
		return nil, err
	}
	rootName := ""
	if kind == SourceFolder {
		rootName = folderName(dir)
	}
	c := t.classify(rootName)
	layout := &Layout{}
	if c.pkg.path != "" {
		layout.PackagePath = filepath.Join(dir, filepath.FromSlash(c.pkg.path))
	}
	if folder := c.assetFolder(); folder != "" {
		layout.AssetDir = filepath.Join(dir, filepath.FromSlash(folder))
	}
	return layout, nil
}

// CountRelevant returns the number of file entries in an archive that are
// package or asset files.
func CountRelevant(path string, format Format) (int, error) {
	count := 0
	err := walkArchive(path, format, func(name string, dir bool) {
		if !dir && Relevant(name) {
			count++
		}
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func folderName(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return filepath.Base(abs)
}

func listArchive(path string, format Format) (*tree, error) {
	t := newTree()
	err := walkArchive(path, format, t.add)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func walkArchive(path string, format Format, visit func(name string, dir bool)) error {
	extractor := format.extractor()
	if extractor == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	err = extractor.Extract(context.Background(), f, nil,
		func(ctx context.Context, f archiver.File) error {
			visit(f.NameInArchive, f.IsDir())
			return nil
		},
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRead, err)
	}

	return nil
}

func listFolder(root string) (*tree, error) {
	t := newTree()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		t.add(filepath.ToSlash(rel), d.IsDir())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return t, nil
}
