package artifacts

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/klauspost/pgzip"

	"github.com/alexiswl/poreduck/internal/queue"
)

const archiveBlockSize = 1 << 20

// ArchiveOutput packs the basecaller folder of one item into
// <output_dir>/<name>.albacore.tar.gz and removes the folder. The archive is
// written to a temporary file and renamed, so a present archive is always
// complete. A missing folder with an existing archive counts as done.
func ArchiveOutput(paths queue.Paths) error {
	info, err := os.Stat(paths.OutputPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if _, archErr := os.Stat(paths.OutputArchivePath); archErr == nil {
				return nil
			}
			return fmt.Errorf("output folder %s not found", paths.OutputPath)
		}
		return fmt.Errorf("stat output folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path %s is not a directory", paths.OutputPath)
	}

	dir := filepath.Dir(paths.OutputArchivePath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(paths.OutputArchivePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := writeTarGz(tmp, paths.OutputPath); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod archive: %w", err)
	}
	if err := os.Rename(tmpName, paths.OutputArchivePath); err != nil {
		return fmt.Errorf("publish archive: %w", err)
	}
	if err := os.RemoveAll(paths.OutputPath); err != nil {
		return fmt.Errorf("remove output folder: %w", err)
	}
	return nil
}

func writeTarGz(w io.Writer, root string) error {
	gz := pgzip.NewWriter(w)
	if err := gz.SetConcurrency(archiveBlockSize, runtime.GOMAXPROCS(0)); err != nil {
		return fmt.Errorf("configure compressor: %w", err)
	}
	tw := tar.NewWriter(gz)

	base := filepath.Dir(root)
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if entry.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		_, copyErr := io.Copy(tw, file)
		closeErr := file.Close()
		if copyErr != nil {
			return copyErr
		}
		return closeErr
	})
	if walkErr != nil {
		_ = tw.Close()
		_ = gz.Close()
		return fmt.Errorf("archive %s: %w", root, walkErr)
	}
	if err := tw.Close(); err != nil {
		_ = gz.Close()
		return fmt.Errorf("finish tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finish gzip stream: %w", err)
	}
	return nil
}
