package archive

import (
	"path"
	"sort"
	"strings"
)

const (
	PackageExt  = ".apk"
	AssetExt    = ".obb"
	AssetFolder = "obb"
)

func IsPackage(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), PackageExt)
}

func IsAsset(name string) bool {
	name = cleanName(name)
	if IsPackage(name) {
		return false
	}
	if strings.HasSuffix(strings.ToLower(name), AssetExt) {
		return true
	}
	segments := strings.Split(name, "/")
	for _, segment := range segments[:len(segments)-1] {
		if strings.EqualFold(segment, AssetFolder) {
			return true
		}
	}
	return false
}

// Relevant reports whether an entry contributes to an installation and
// therefore counts towards extraction progress.
func Relevant(name string) bool {
	return IsPackage(name) || IsAsset(name)
}

// tree is the common shape of archive listings and directory walks, so both
// are classified by the same traversal.
type tree struct {
	name     string
	dir      bool
	children map[string]*tree
}

func newTree() *tree {
	return &tree{
		dir:      true,
		children: map[string]*tree{},
	}
}

func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	return strings.Trim(name, "/")
}

func (t *tree) add(name string, dir bool) {
	name = cleanName(name)
	if name == "" || name == "." {
		return
	}
	segments := strings.Split(name, "/")
	n := t
	for i, segment := range segments {
		if segment == "" || segment == "." || segment == ".." {
			return
		}
		child, ok := n.children[segment]
		if !ok {
			child = &tree{
				name:     segment,
				children: map[string]*tree{},
			}
			n.children[segment] = child
		}
		if i < len(segments)-1 || dir {
			child.dir = true
		}
		n = child
	}
}

type candidate struct {
	path  string
	depth int
}

func (c *candidate) offer(p string, depth int) {
	if c.path == "" || depth < c.depth {
		c.path = p
		c.depth = depth
	}
}

type classification struct {
	rootName    string
	pkg         candidate
	assets      candidate
	tokenFolder candidate
}

// classify walks the tree depth first with siblings in lexicographic order.
// The shallowest candidate wins and ties go to the one visited first.
// rootName names the folder the tree was listed from; it is empty for
// archives, whose root is not a folder and so never holds assets.
func (t *tree) classify(rootName string) *classification {
	c := &classification{
		rootName: rootName,
	}
	t.walk("", 0, false, c)
	return c
}

func (t *tree) walk(p string, depth int, underToken bool, c *classification) {
	names := make([]string, 0, len(t.children))
	for name := range t.children {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		child := t.children[name]
		childPath := path.Join(p, name)
		if child.dir {
			if p != "" && strings.EqualFold(path.Base(p), AssetFolder) {
				c.tokenFolder.offer(childPath, depth)
			}
			child.walk(childPath, depth+1, underToken || strings.EqualFold(name, AssetFolder), c)
			continue
		}
		if IsPackage(name) {
			c.pkg.offer(childPath, depth)
			continue
		}
		hasAssetExt := strings.HasSuffix(strings.ToLower(name), AssetExt)
		switch {
		case p != "" && (underToken || hasAssetExt):
			c.assets.offer(p, depth-1)
		case p == "" && c.rootName != "" && hasAssetExt:
			c.assets.offer(".", -1)
		}
	}
}

// assetFolder prefers the nearest folder holding asset files and falls back to
// a (possibly empty) folder directly below the asset-folder token.
func (c *classification) assetFolder() string {
	if c.assets.path != "" {
		return c.assets.path
	}
	return c.tokenFolder.path
}

func (c *classification) result() *ScanResult {
	result := &ScanResult{}
	if c.pkg.path != "" {
		result.HasPackage = true
		result.PackageFileName = path.Base(c.pkg.path)
	}
	if folder := c.assetFolder(); folder != "" {
		result.HasAssets = true
		result.AssetFolderName = path.Base(folder)
		if folder == "." {
			result.AssetFolderName = c.rootName
		}
	}
	return result
}
