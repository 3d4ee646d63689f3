package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bastiangx/kanaserve/internal/logger"
	"github.com/bastiangx/kanaserve/pkg/dictionary"
)

// buildDictionary loads src in any supported format and writes it to out.
// The output format follows out: a trailing separator or an existing
// directory gives chunks, .db/.sqlite/.sqlite3 gives sqlite, anything else
// the single binary file.
func buildDictionary(src, out string, chunkSize, maxEntries int) error {
	blog := logger.New("build")
	start := time.Now()

	idx, err := dictionary.Load(src, dictionary.LoadOptions{MaxEntries: maxEntries})
	if err != nil {
		return err
	}
	entries := idx.Entries()
	blog.Info("Loaded source", "path", src, "entries", len(entries), "keys", idx.Stats().Keys)

	switch {
	case isDirTarget(out):
		n, err := dictionary.WriteChunks(out, entries, chunkSize)
		if err != nil {
			return err
		}
		blog.Info("Wrote chunks", "dir", out, "chunks", n)
	case isSQLiteTarget(out):
		if err := dictionary.WriteSQLite(out, entries); err != nil {
			return err
		}
		blog.Info("Wrote sqlite", "path", out)
	default:
		if err := dictionary.WriteBinaryFile(out, entries); err != nil {
			return err
		}
		blog.Info("Wrote binary", "path", out)
	}

	// verify the output loads
	if _, err := dictionary.Load(out, dictionary.LoadOptions{MaxEntries: maxEntries}); err != nil {
		return fmt.Errorf("verify %s: %w", out, err)
	}
	blog.Info("Done", "took", time.Since(start).Round(time.Millisecond))
	return nil
}

func isDirTarget(path string) bool {
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(os.PathSeparator)) {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isSQLiteTarget(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}
