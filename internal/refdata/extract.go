package refdata

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/taxonid/internal/apperr"
	"github.com/starford/taxonid/internal/storage"
)

// manifestName marks a fully extracted data root.
const manifestName = ".dmanifest"

// maxLinkHops bounds symlink resolution within one archive.
const maxLinkHops = 40

// Extract unpacks the gzipped tarball into root. Extraction is skipped when
// root already holds a manifest, unless force is set. Every member is checked
// to stay within root before anything is written.
func (p *Preparer) Extract(tarball, root string, force bool) error {
	if _, err := os.Stat(filepath.Join(root, manifestName)); err == nil && !force {
		p.logger.Warn("refdata: data already exists, extraction skipped", slog.String("root", root))
		return nil
	}

	fsys, err := storage.NewFS(root)
	if err != nil {
		return fmt.Errorf("refdata: %w", err)
	}

	links := archiveLinks{}
	if err := walkTar(tarball, func(hdr *tar.Header, _ io.Reader) error {
		return checkMember(fsys, links, hdr)
	}); err != nil {
		return err
	}

	var files int
	if err := walkTar(tarball, func(hdr *tar.Header, r io.Reader) error {
		written, err := p.writeMember(fsys, hdr, r)
		if written {
			files++
		}
		return err
	}); err != nil {
		return err
	}

	p.logger.Info("refdata: data extracted", slog.String("root", root), slog.Int("files", files))
	return nil
}

func walkTar(tarball string, fn func(*tar.Header, io.Reader) error) error {
	f, err := os.Open(tarball)
	if err != nil {
		return fmt.Errorf("refdata: open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("refdata: read gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("refdata: read archive: %w", err)
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

func checkMember(fsys storage.Provider, links archiveLinks, hdr *tar.Header) error {
	if _, err := fsys.Resolve(hdr.Name); err != nil {
		return fmt.Errorf("refdata: archive member %q: %w", hdr.Name, err)
	}
	if err := links.check(hdr); err != nil {
		return fmt.Errorf("refdata: archive member %q: %w", hdr.Name, err)
	}
	switch hdr.Typeflag {
	case tar.TypeSymlink:
		if err := fsys.CheckLinkTarget(hdr.Linkname, hdr.Name); err != nil {
			return fmt.Errorf("refdata: archive member %q: %w", hdr.Name, err)
		}
	case tar.TypeLink:
		if _, err := fsys.Resolve(hdr.Linkname); err != nil {
			return fmt.Errorf("refdata: archive member %q: %w", hdr.Name, err)
		}
	}
	return nil
}

// archiveLinks maps the root-relative location of every symlink seen so far
// in an archive to its target, so later members are checked against where
// they will physically land.
type archiveLinks map[string]string

// check resolves hdr through earlier links and records it when it is a
// symlink itself.
func (l archiveLinks) check(hdr *tar.Header) error {
	name := path.Clean(filepath.ToSlash(hdr.Name))
	dir, err := l.resolve(path.Dir(name))
	if err != nil {
		return err
	}
	at := path.Join(dir, path.Base(name))

	switch hdr.Typeflag {
	case tar.TypeSymlink:
		if _, err := l.resolve(path.Join(dir, filepath.ToSlash(hdr.Linkname))); err != nil {
			return err
		}
		l[at] = filepath.ToSlash(hdr.Linkname)
	case tar.TypeLink:
		if _, err := l.resolve(filepath.ToSlash(hdr.Linkname)); err != nil {
			return err
		}
	}
	return nil
}

// resolve walks rel from the root, following recorded links, and returns the
// physical root-relative path. Stepping above the root is a traversal.
func (l archiveLinks) resolve(rel string) (string, error) {
	var (
		out  []string
		hops int
	)
	pending := strings.Split(rel, "/")
	for len(pending) > 0 {
		part := pending[0]
		pending = pending[1:]
		switch part {
		case "", ".":
			continue
		case "..":
			if len(out) == 0 {
				return "", fmt.Errorf("%s leaves the root: %w", rel, apperr.ErrPathTraversal)
			}
			out = out[:len(out)-1]
			continue
		}

		out = append(out, part)
		target, ok := l[path.Join(out...)]
		if !ok {
			continue
		}
		if hops++; hops > maxLinkHops {
			return "", fmt.Errorf("%s: too many levels of symbolic links: %w", rel, apperr.ErrPathTraversal)
		}
		out = out[:len(out)-1]
		pending = append(strings.Split(target, "/"), pending...)
	}
	return path.Join(out...), nil
}

func (p *Preparer) writeMember(fsys storage.Provider, hdr *tar.Header, r io.Reader) (bool, error) {
	mode := hdr.FileInfo().Mode().Perm()
	switch hdr.Typeflag {
	case tar.TypeDir:
		return false, fsys.MkdirAll(hdr.Name, mode)
	case tar.TypeReg:
		return true, fsys.WriteFrom(hdr.Name, r, mode)
	case tar.TypeSymlink:
		return true, fsys.Symlink(hdr.Linkname, hdr.Name)
	case tar.TypeLink:
		src, err := fsys.Resolve(hdr.Linkname)
		if err != nil {
			return false, err
		}
		f, err := os.Open(src)
		if err != nil {
			return false, fmt.Errorf("refdata: hard link %q: %w", hdr.Name, err)
		}
		defer f.Close()
		return true, fsys.WriteFrom(hdr.Name, f, mode)
	default:
		p.logger.Debug("refdata: skipping archive member",
			slog.String("name", hdr.Name),
			slog.String("type", string(hdr.Typeflag)))
		return false, nil
	}
}
