package gmos

import (
	"path/filepath"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// trawl is an internal general purpose recursive search. The basename
// is only matched with the pattern, eg
// ("*.obs.json", "GN-2024B-Q-101-33.obs.json").
func trawl(vfs *tiledb.VFS, pattern string, uri string, items []string) ([]string, error) {
	dirs, files, err := vfs.List(uri)
	if err != nil {
		return items, err
	}

	// check files for the matching pattern
	for _, file := range files {
		match, err := filepath.Match(pattern, filepath.Base(file))
		if err != nil {
			return items, err
		}

		if match {
			items = append(items, file)
		}
	}

	// recurse over every directory
	for _, dir := range dirs {
		items, err = trawl(vfs, pattern, dir, items)
		if err != nil {
			return items, err
		}
	}

	return items, nil
}

// FindObs recursively searches for *.obs.json observation request files
// under a given URI. The TileDB VFS handles local filesystems and
// object stores such as AWS-S3 seamlessly; a config is required for
// object stores with permission constraints.
func FindObs(uri string, config_uri string) ([]string, error) {
	session, err := newVfsSession(config_uri)
	if err != nil {
		return nil, err
	}
	defer session.Free()

	items := make([]string, 0)

	return trawl(session.vfs, "*.obs.json", uri, items)
}
