// Package apkg packs a collection database into an Anki deck package.
package apkg

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// CollectionEntry is the archive name of the collection database.
	CollectionEntry = "collection.anki2"
	// MediaEntry is the archive name of the media manifest.
	MediaEntry = "media"
)

// MediaFile is a file shipped in the package. Name is what notes refer to,
// Path is where it is read from.
type MediaFile struct {
	Name string
	Path string
}

// Write creates the package at apkgPath from the database at dbPath. Media
// files are stored under numbered entries and listed in the manifest; with no
// media the manifest is "{}".
func Write(dbPath, apkgPath string, media []MediaFile) (err error) {
	if err := os.MkdirAll(filepath.Dir(apkgPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmpPath := apkgPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", apkgPath, err)
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(out)

	if err := addFile(zw, CollectionEntry, dbPath); err != nil {
		return err
	}

	manifest := make(map[string]string, len(media))
	for i, m := range media {
		entry := strconv.Itoa(i)
		if err := addFile(zw, entry, m.Path); err != nil {
			return err
		}
		manifest[entry] = m.Name
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to encode media manifest: %w", err)
	}
	w, err := zw.Create(MediaEntry)
	if err != nil {
		return fmt.Errorf("failed to add media manifest: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write media manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", apkgPath, err)
	}

	if err := os.Rename(tmpPath, apkgPath); err != nil {
		return fmt.Errorf("failed to save %s: %w", apkgPath, err)
	}
	return nil
}

func addFile(zw *zip.Writer, entry, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: entry, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", entry, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", entry, err)
	}
	return nil
}
