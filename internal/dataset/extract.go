package dataset

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for archive entries that would land outside the target
var ErrUnsafePath = errors.New("archive entry escapes target directory")

// Extract unpacks the gzip-compressed tarball at archive into dir.
// Every write goes through an os.Root, so links planted by earlier entries
// cannot redirect later ones outside dir.
func Extract(archive, dir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}
	defer root.Close()

	x := &extractor{root: root}
	if x.realDir, err = realPath(dir); err != nil {
		return err
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}
		if err := x.entry(hdr, tr); err != nil {
			return err
		}
	}
}

type extractor struct {
	root    *os.Root
	realDir string
}

func (x *extractor) entry(hdr *tar.Header, r io.Reader) error {
	name, err := localName(hdr.Name)
	if err != nil {
		return err
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := x.root.MkdirAll(name, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", name, err)
		}

	case tar.TypeReg:
		return x.writeFile(name, r, hdr.FileInfo().Mode().Perm())

	case tar.TypeSymlink:
		if filepath.IsAbs(hdr.Linkname) {
			return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, hdr.Name, hdr.Linkname)
		}
		parent, err := x.mkParent(name)
		if err != nil {
			return err
		}
		// resolve against the parent as it exists on disk, links included
		realParent, err := realPath(filepath.Join(x.root.Name(), parent))
		if err != nil {
			return err
		}
		if !within(x.realDir, filepath.Join(realParent, hdr.Linkname)) {
			return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, hdr.Name, hdr.Linkname)
		}
		x.root.Remove(name)
		if err := x.root.Symlink(hdr.Linkname, name); err != nil {
			return fmt.Errorf("symlink %s: %w", name, err)
		}

	case tar.TypeLink:
		oldname, err := localName(hdr.Linkname)
		if err != nil {
			return err
		}
		if _, err := x.mkParent(name); err != nil {
			return err
		}
		x.root.Remove(name)
		if err := x.root.Link(oldname, name); err != nil {
			return fmt.Errorf("link %s: %w", name, err)
		}

	default:
		log.Debug("skipping archive entry", "name", hdr.Name, "type", string(hdr.Typeflag))
	}
	return nil
}

func (x *extractor) mkParent(name string) (string, error) {
	parent := filepath.Dir(name)
	if err := x.root.MkdirAll(parent, 0755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", parent, err)
	}
	return parent, nil
}

func (x *extractor) writeFile(name string, r io.Reader, perm os.FileMode) error {
	if _, err := x.mkParent(name); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0644
	}

	out, err := x.root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return out.Close()
}

// localName cleans an archive path and rejects anything that climbs out
func localName(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return clean, nil
}

func realPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return resolved, nil
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
