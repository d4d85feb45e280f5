package fileingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"shipclass/internal/chunking"
)

// FileMeta holds metadata about a chunk file.
type FileMeta struct {
	Path    string
	Name    string
	Number  int // 1-based chunk number parsed from the name
	Size    int64
	ModTime time.Time
}

var chunkName = regexp.MustCompile(`^chunk_(\d+)\.(?i:csv|xlsx|xlsm)$`)

// ChunkFileName returns the name of chunk n (1-based) with the extension of src.
func ChunkFileName(n int, src string) string {
	return fmt.Sprintf("chunk_%d%s", n, filepath.Ext(src))
}

// OutputFileName returns the classified output name for a chunk or source file.
func OutputFileName(src string) string {
	return "classified_" + filepath.Base(src)
}

// SplitTable cuts the table at src into chunk files of chunkSize rows under dir.
// Chunk files that already exist are left untouched. It returns the chunk paths in order.
func SplitTable(ctx context.Context, src, dir string, chunkSize int, sheet string) ([]string, error) {
	t, err := ReadTable(src, sheet)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chunk directory %s: %w", dir, err)
	}

	ranges := chunking.Ranges(t.Len(), chunkSize)
	paths := make([]string, 0, len(ranges))
	for i, r := range ranges {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		path := filepath.Join(dir, ChunkFileName(i+1, src))
		paths = append(paths, path)
		if _, err := os.Stat(path); err == nil {
			log.Debugf("Chunk %s already exists, keeping it", path)
			continue
		}
		if err := WriteTable(path, t.Slice(r[0], r[1]), sheet); err != nil {
			return paths, err
		}
		log.Infof("Created chunk %s (%d rows)", path, r[1]-r[0])
	}
	return paths, nil
}

// DiscoverChunkFiles lists the chunk_<n> table files directly under dir,
// ordered by chunk number.
func DiscoverChunkFiles(ctx context.Context, dir string) ([]FileMeta, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []FileMeta
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() {
			continue
		}
		m := chunkName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		meta, metaErr := ExtractFileMeta(filepath.Join(dir, e.Name()))
		if metaErr != nil {
			// Skip files we can't stat, but continue
			continue
		}
		meta.Number, _ = strconv.Atoi(m[1])
		files = append(files, meta)
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Number != files[j].Number {
			return files[i].Number < files[j].Number
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

/*
ExtractFileMeta extracts metadata from a given file path.

Returns FileMeta with Name, Path, Size, and ModTime.
*/
func ExtractFileMeta(path string) (FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMeta{}, err
	}
	return FileMeta{
		Path:    path,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
