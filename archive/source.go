package archive

import (
	"errors"
	"fmt"
	"github.com/mholt/archiver/v4"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	ErrRead              = errors.New("could not read source")
)

type Format int

const (
	FormatZip Format = iota + 1
	FormatRar
	FormatSevenZip
)

// Family groups formats handled by the same external extraction tool.
type Family int

const (
	FamilySevenZip Family = iota + 1
	FamilyRar
)

func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return FormatZip, nil
	case ".rar":
		return FormatRar, nil
	case ".7z":
		return FormatSevenZip, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

func (format Format) String() string {
	switch format {
	case FormatZip:
		return "zip"
	case FormatRar:
		return "rar"
	case FormatSevenZip:
		return "7z"
	default:
		return "unknown"
	}
}

func (format Format) Family() Family {
	if format == FormatRar {
		return FamilyRar
	}
	return FamilySevenZip
}

func (format Format) extractor() archiver.Extractor {
	switch format {
	case FormatZip:
		return archiver.Zip{}
	case FormatRar:
		return archiver.Rar{}
	case FormatSevenZip:
		return archiver.SevenZip{}
	default:
		return nil
	}
}

type SourceKind int

const (
	SourceArchive SourceKind = iota + 1
	SourceFolder
)

// Source is where an installation reads its bundle from: an archive file or
// an already extracted folder.
type Source struct {
	Kind   SourceKind
	Path   string
	Format Format
}

func ParseSource(path string) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("source path not specified")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if info.IsDir() {
		return &Source{
			Kind: SourceFolder,
			Path: path,
		}, nil
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	return &Source{
		Kind:   SourceArchive,
		Path:   path,
		Format: format,
	}, nil
}

func (source *Source) IsArchive() bool {
	return source.Kind == SourceArchive
}

func (source *Source) String() string {
	if source.IsArchive() {
		return fmt.Sprintf("%s archive %s", source.Format, source.Path)
	}
	return fmt.Sprintf("folder %s", source.Path)
}
