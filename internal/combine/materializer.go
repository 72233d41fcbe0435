package combine

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/meganc/bidscombine/internal/catalog"
	"github.com/meganc/bidscombine/internal/filelock"
)

// SourceFileField is the sidecar field recording the absolute path of
// the file a copy originated from.
const SourceFileField = "SourceFile"

// sidecarExtension is the companion metadata extension substituted for
// the data extension.
const sidecarExtension = ".json"

// Materializer copies renumbered files into the combined subject tree:
// the data file byte-for-byte, the JSON sidecar re-serialized with a
// SourceFile provenance field injected.
type Materializer struct {
	subjectDir string
	gid        int // -1 when no ownership change is configured
	overwrite  bool
	rep        *reporter
}

// NewMaterializer creates a Materializer writing under subjectDir.
// ownerGroup, when non-empty, is a group name or numeric GID applied to
// every file and directory created.
func NewMaterializer(subjectDir, ownerGroup string, overwrite bool, rep *reporter) (*Materializer, error) {
	gid, err := resolveGroup(ownerGroup)
	if err != nil {
		return nil, err
	}
	return &Materializer{
		subjectDir: subjectDir,
		gid:        gid,
		overwrite:  overwrite,
		rep:        rep,
	}, nil
}

// resolveGroup resolves a group name or numeric GID. Empty input means
// no ownership change and resolves to -1.
func resolveGroup(ownerGroup string) (int, error) {
	if ownerGroup == "" {
		return -1, nil
	}
	if gid, err := strconv.Atoi(ownerGroup); err == nil {
		return gid, nil
	}
	group, err := user.LookupGroup(ownerGroup)
	if err != nil {
		return -1, fmt.Errorf("%w: unknown group %q: %v", ErrConfiguration, ownerGroup, err)
	}
	gid, err := strconv.Atoi(group.Gid)
	if err != nil {
		return -1, fmt.Errorf("%w: group %q has non-numeric gid %q", ErrConfiguration, ownerGroup, group.Gid)
	}
	return gid, nil
}

// Chgrp applies the configured group to path. A no-op when no group is
// configured; a failure to change ownership is surfaced, never ignored.
func (m *Materializer) Chgrp(path string) error {
	if m.gid < 0 {
		return nil
	}
	if err := os.Chown(path, -1, m.gid); err != nil {
		return fmt.Errorf("%w: change group of %s: %v", ErrIO, path, err)
	}
	return nil
}

// Materialize copies one assignment: the data file, then its sidecar
// with provenance injected, then the ownership change. The destination
// category directory is created on first use.
func (m *Materializer) Materialize(a Assignment) error {
	destDir := filepath.Join(m.subjectDir, a.Subdir)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrIO, destDir, err)
	}
	if err := m.Chgrp(destDir); err != nil {
		return err
	}

	destData := filepath.Join(destDir, a.Filename)
	if !m.overwrite {
		if _, err := os.Stat(destData); err == nil {
			return fmt.Errorf("%w: destination %s already exists (use --overwrite to replace a previous run)", ErrIO, destData)
		}
	}
	if err := copyFile(a.Source.Path, destData); err != nil {
		return err
	}
	m.rep.log.Infof("%s", a.Source.Path)
	m.rep.log.Infof("  -------> %s", destData)

	srcSidecar := sidecarPath(a.Source.Path)
	destSidecar := sidecarPath(destData)
	if err := m.writeSidecar(srcSidecar, destSidecar, a); err != nil {
		return err
	}
	m.rep.log.Infof("%s", srcSidecar)
	m.rep.log.Infof("  -------> %s", destSidecar)

	if err := m.Chgrp(destData); err != nil {
		return err
	}
	return m.Chgrp(destSidecar)
}

// writeSidecar reads and parses the source sidecar, injects the
// SourceFile provenance field, and atomically writes the result with
// stable two-space indentation.
func (m *Materializer) writeSidecar(src, dest string, a Assignment) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("%w: sidecar for %s: %v", ErrMetadata, a.Source.Filename, err)
	}

	var metadata map[string]any
	if err := json.Unmarshal(data, &metadata); err != nil {
		return fmt.Errorf("%w: parse sidecar %s: %v", ErrMetadata, src, err)
	}

	metadata[SourceFileField] = a.Source.Path

	// Known limitation, reproduced deliberately: IntendedFor still
	// references the original session's paths after the move.
	if a.Subdir == "fmap" {
		if _, present := metadata["IntendedFor"]; present {
			m.rep.warnf("IntendedFor in %s was not rewritten to the combined paths", dest)
		}
	}

	out, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: serialize sidecar %s: %v", ErrMetadata, dest, err)
	}
	out = append(out, '\n')

	if err := filelock.AtomicWrite(dest, out); err != nil {
		return fmt.Errorf("%w: write sidecar %s: %v", ErrIO, dest, err)
	}
	return nil
}

// sidecarPath swaps the data extension for the sidecar extension.
func sidecarPath(dataPath string) string {
	return strings.TrimSuffix(dataPath, catalog.DataExtension) + sidecarExtension
}

// copyFile copies src to dest byte-for-byte. Any failure, including the
// source vanishing mid-copy, is an ErrIO.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrIO, src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrIO, dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("%w: copy %s: %v", ErrIO, src, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("%w: sync %s: %v", ErrIO, dest, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrIO, dest, err)
	}
	return nil
}
