// Package migrations applies the embedded schema files at startup. There is
// no version table and no down path: every file is idempotent (CREATE IF NOT
// EXISTS) and the full set is replayed in lexical order on each run.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed postgres/*.sql
var pgFS embed.FS

//go:embed clickhouse/*.sql
var chFS embed.FS

// sqlFiles lists the .sql entries of one embedded directory in lexical
// order, the order they are applied in.
func sqlFiles(fsys embed.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
