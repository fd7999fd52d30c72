package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrExists      = errors.New("artifact already exists with different content")
	ErrUnknownType = errors.New("generated type is not loaded")
	ErrUnsafePath  = errors.New("unsafe path")
)

// Host is the capability surface the creative-tooling application exposes.
type Host interface {
	CreateTextArtifact(path, content string) error
	CreateAsset(typeName, assetName string) (string, error)
	ReadTextArtifact(path string) (string, error)
	OverwriteTextArtifact(path, content string) error

	// RequestReload asks the host to rebuild. The reset it causes is not
	// observable from the caller.
	RequestReload() error
	// WaitReady blocks until the host can serve post-reset operations.
	WaitReady(ctx context.Context) error
}

// WorkspaceOptions configures a filesystem-backed host.
type WorkspaceOptions struct {
	ScriptsDir  string
	AssetsDir   string
	ScriptExt   string
	ReadyMarker string
	ReloadFlag  string
}

// Workspace is a host backed by a project directory. Generated types are the
// scripts present when the workspace was opened, so a script written in this
// process only becomes instantiable after a restart, like a real hard reload.
type Workspace struct {
	Root string
	opts WorkspaceOptions

	types map[string]bool
}

func NewWorkspace(root string, opts WorkspaceOptions) (*Workspace, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if opts.ScriptsDir == "" {
		opts.ScriptsDir = "Scripts"
	}
	if opts.AssetsDir == "" {
		opts.AssetsDir = "Assets"
	}
	if opts.ScriptExt == "" {
		opts.ScriptExt = ".cs"
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	w := &Workspace{Root: absRoot, opts: opts, types: make(map[string]bool)}
	if err := w.loadTypes(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workspace) loadTypes() error {
	dir := filepath.Join(w.Root, w.opts.ScriptsDir)
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), w.opts.ScriptExt) {
			return nil
		}
		w.types[strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))] = true
		return nil
	})
}

// HasType reports whether the named type was compiled into this host session.
func (w *Workspace) HasType(name string) bool {
	return w.types[name]
}

func (w *Workspace) resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty path", ErrUnsafePath)
	}
	target := filepath.Join(w.Root, name)
	rel, err := filepath.Rel(w.Root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

// CreateTextArtifact writes a new file. Writing identical content over an
// existing file succeeds so that replayed steps are harmless.
func (w *Workspace) CreateTextArtifact(path, content string) error {
	target, err := w.resolve(path)
	if err != nil {
		return err
	}
	existing, err := os.ReadFile(target)
	if err == nil {
		if string(existing) == content {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (w *Workspace) ReadTextArtifact(path string) (string, error) {
	target, err := w.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

func (w *Workspace) OverwriteTextArtifact(path, content string) error {
	target, err := w.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

type assetFile struct {
	Name      string    `yaml:"name"`
	Type      string    `yaml:"type"`
	CreatedAt time.Time `yaml:"createdAt"`
}

// CreateAsset instantiates a generated type and saves it under the assets
// directory. An existing asset of the same type is left untouched.
func (w *Workspace) CreateAsset(typeName, assetName string) (string, error) {
	if !w.types[typeName] {
		return "", fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	rel := filepath.Join(w.opts.AssetsDir, assetName+".asset")
	target, err := w.resolve(rel)
	if err != nil {
		return "", err
	}

	if data, err := os.ReadFile(target); err == nil {
		var existing assetFile
		if err := yaml.Unmarshal(data, &existing); err == nil && existing.Type == typeName {
			return rel, nil
		}
		return "", fmt.Errorf("%w: %s", ErrExists, rel)
	}

	data, err := yaml.Marshal(assetFile{Name: assetName, Type: typeName, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write asset: %w", err)
	}
	return rel, nil
}

// RequestReload drops a flag file for the host and clears the ready marker;
// the host recreates the marker once it has rebuilt.
func (w *Workspace) RequestReload() error {
	if w.opts.ReadyMarker != "" {
		if err := os.Remove(w.markerPath(w.opts.ReadyMarker)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to clear ready marker: %w", err)
		}
	}
	if w.opts.ReloadFlag == "" {
		return nil
	}
	flag := w.markerPath(w.opts.ReloadFlag)
	if err := os.MkdirAll(filepath.Dir(flag), 0755); err != nil {
		return err
	}
	return os.WriteFile(flag, []byte(time.Now().UTC().Format(time.RFC3339)), 0644)
}

// WaitReady returns immediately unless a ready marker is configured.
func (w *Workspace) WaitReady(ctx context.Context) error {
	if w.opts.ReadyMarker == "" {
		return nil
	}
	return WaitForFile(ctx, w.markerPath(w.opts.ReadyMarker))
}

func (w *Workspace) markerPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.Root, p)
}
