package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rahul/reforge/internal/host"
	"github.com/rahul/reforge/internal/plan"
)

const (
	CreateScript        = "create_script"
	CreateAsset         = "create_asset"
	ReadScript          = "read_script"
	UpdateScript        = "update_script"
	UpdateDocumentation = "update_documentation"
)

// DefaultChainTools is the reduced set offered to follow-up documentation plans.
var DefaultChainTools = []string{UpdateDocumentation, ReadScript}

// HostCapabilities wraps the host capability surface. docsDir is where
// update_documentation writes.
func HostCapabilities(h host.Host, docsDir string) []Capability {
	if docsDir == "" {
		docsDir = "Docs"
	}
	return []Capability{
		{
			Name:        CreateScript,
			Description: "Create a new source file. The host recompiles and reloads after new scripts are written, so types defined here can only be used by post-reload tools such as create_asset.",
			Parameters: []Param{
				{Name: "path", Type: "string", Description: "Workspace-relative path, e.g. Scripts/Enemy.cs"},
				{Name: "content", Type: "string", Description: "Full source text"},
			},
			Phase:          plan.PhasePreReset,
			TriggersReload: true,
			ArtifactArg:    "path",
			Run: func(ctx context.Context, args Args) (string, error) {
				path, err := args.String("path")
				if err != nil {
					return "", err
				}
				content, err := args.String("content")
				if err != nil {
					return "", err
				}
				if err := h.CreateTextArtifact(path, content); err != nil {
					return "", fmt.Errorf("failed to create script: %w", err)
				}
				return fmt.Sprintf("Successfully created %s", path), nil
			},
		},
		{
			Name:        CreateAsset,
			Description: "Create an instance of a generated type and save it as a named asset. The type must come from a script that exists after the host reload.",
			Parameters: []Param{
				{Name: "type", Type: "string", Description: "Name of the generated type"},
				{Name: "name", Type: "string", Description: "Asset name without extension"},
			},
			Phase: plan.PhasePostReset,
			Run: func(ctx context.Context, args Args) (string, error) {
				typeName, err := args.String("type")
				if err != nil {
					return "", err
				}
				name, err := args.String("name")
				if err != nil {
					return "", err
				}
				path, err := h.CreateAsset(typeName, name)
				if err != nil {
					return "", fmt.Errorf("failed to create asset: %w", err)
				}
				return fmt.Sprintf("Successfully created asset %s of type %s", path, typeName), nil
			},
		},
		{
			Name:        ReadScript,
			Description: "Read the content of an existing source or text file.",
			Parameters: []Param{
				{Name: "path", Type: "string", Description: "Workspace-relative path"},
			},
			Phase: plan.PhasePreReset,
			Run: func(ctx context.Context, args Args) (string, error) {
				path, err := args.String("path")
				if err != nil {
					return "", err
				}
				return h.ReadTextArtifact(path)
			},
		},
		{
			Name:        UpdateScript,
			Description: "Overwrite an existing source file with new content.",
			Parameters: []Param{
				{Name: "path", Type: "string", Description: "Workspace-relative path of an existing file"},
				{Name: "content", Type: "string", Description: "Full replacement source text"},
			},
			Phase:          plan.PhasePreReset,
			TriggersReload: true,
			ArtifactArg:    "path",
			Run: func(ctx context.Context, args Args) (string, error) {
				path, err := args.String("path")
				if err != nil {
					return "", err
				}
				content, err := args.String("content")
				if err != nil {
					return "", err
				}
				if _, err := h.ReadTextArtifact(path); err != nil {
					return "", err
				}
				if err := h.OverwriteTextArtifact(path, content); err != nil {
					return "", fmt.Errorf("failed to update script: %w", err)
				}
				return fmt.Sprintf("Successfully updated %s", path), nil
			},
		},
		{
			Name:        UpdateDocumentation,
			Description: "Write or replace a markdown documentation page in the " + docsDir + " directory.",
			Parameters: []Param{
				{Name: "path", Type: "string", Description: "Documentation file name, e.g. Enemy.md"},
				{Name: "content", Type: "string", Description: "Full markdown content"},
			},
			Phase: plan.PhasePreReset,
			Run: func(ctx context.Context, args Args) (string, error) {
				path, err := args.String("path")
				if err != nil {
					return "", err
				}
				content, err := args.String("content")
				if err != nil {
					return "", err
				}
				path = docPath(docsDir, path)
				if err := h.OverwriteTextArtifact(path, content); err != nil {
					return "", fmt.Errorf("failed to write documentation: %w", err)
				}
				return fmt.Sprintf("Successfully wrote documentation %s", path), nil
			},
		},
	}
}

func docPath(docsDir, path string) string {
	clean := filepath.ToSlash(filepath.Clean(path))
	prefix := filepath.ToSlash(filepath.Clean(docsDir)) + "/"
	if strings.HasPrefix(clean, prefix) {
		return clean
	}
	return prefix + clean
}
