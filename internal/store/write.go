package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nereid-dev/nereid/pkg/schema"
)

// ValidateRelPath rejects absolute paths and any ".." component so stored
// paths cannot escape the session root.
func ValidateRelPath(rel string) error {
	if rel == "" {
		return schema.NewError(schema.ErrCodePathEscape, "path must not be empty")
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return schema.NewErrorf(schema.ErrCodePathEscape, "path %q must be session-relative", rel)
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == ".." {
			return schema.NewErrorf(schema.ErrCodePathEscape, "path %q must not contain '..'", rel)
		}
	}
	return nil
}

// ensureInsideRoot verifies that path's directory chain, with all symlinks
// resolved, stays inside root. A symlink targeting outside the root fails
// with UNSAFE_SYMLINK before anything is written.
func ensureInsideRoot(root, path string) error {
	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "cannot resolve session root %q", root).WithCause(err)
	}
	dir := filepath.Dir(path)
	dirResolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "cannot resolve directory %q", dir).WithCause(err)
	}
	if !isWithin(rootResolved, dirResolved) {
		return schema.NewErrorf(schema.ErrCodeUnsafeSymlink, "directory %q resolves outside the session root", dir)
	}
	// The target itself may be a pre-existing symlink; refuse if it points
	// outside the root.
	if info, lerr := os.Lstat(path); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
		targetResolved, rerr := filepath.EvalSymlinks(path)
		if rerr != nil || !isWithin(rootResolved, targetResolved) {
			return schema.NewErrorf(schema.ErrCodeUnsafeSymlink, "target %q is a symlink outside the session root", path)
		}
	}
	return nil
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// checkExistingChain walks the existing components between root and dir,
// refusing any symlink that resolves outside the root before MkdirAll can
// create anything behind it.
func checkExistingChain(root, dir string) error {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return nil
	}
	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "cannot resolve session root %q", root).WithCause(err)
	}
	cur := root
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		cur = filepath.Join(cur, part)
		info, lerr := os.Lstat(cur)
		if os.IsNotExist(lerr) {
			return nil
		}
		if lerr != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "cannot inspect %q", cur).WithCause(lerr)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			resolved, rerr := filepath.EvalSymlinks(cur)
			if rerr != nil || !isWithin(rootResolved, resolved) {
				return schema.NewErrorf(schema.ErrCodeUnsafeSymlink, "path component %q is a symlink outside the session root", cur)
			}
		}
	}
	return nil
}

// writeFileAtomic writes data to rel under root via temp-write + rename. With
// durable set, file contents and the containing directory are fsynced before
// and after the rename.
func writeFileAtomic(root, rel string, data []byte, durable bool) error {
	if err := ValidateRelPath(rel); err != nil {
		return err
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if err := checkExistingChain(root, filepath.Dir(target)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "cannot create directory for %q", rel).WithCause(err)
	}
	if err := ensureInsideRoot(root, target); err != nil {
		return err
	}

	tmp := target + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeAtomicWrite, "cannot create temp file for %q", rel).WithCause(err)
	}
	_, werr := f.Write(data)
	if werr == nil && durable {
		werr = f.Sync()
	}
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(tmp)
		err := werr
		if err == nil {
			err = cerr
		}
		return schema.NewErrorf(schema.ErrCodeAtomicWrite, "write to %q failed", rel).WithCause(err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return schema.NewErrorf(schema.ErrCodeAtomicWrite, "rename into %q failed", rel).WithCause(err)
	}
	if durable {
		if dir, derr := os.Open(filepath.Dir(target)); derr == nil {
			_ = dir.Sync()
			_ = dir.Close()
		}
	}
	return nil
}

// fileStem derives a filesystem-portable stem from an identifier. Encoding is
// a persistence concern only and never changes the model id.
func fileStem(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	stem := strings.Trim(b.String(), ".")
	if stem == "" {
		stem = "unnamed"
	}
	return stem
}
