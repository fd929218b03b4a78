// Package csharp builds compiler symbol trees for C# projects by parsing
// their sources with tree-sitter. It needs no .NET SDK. Conditional
// compilation is not evaluated, so every #if branch contributes declarations.
package csharp

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/emenda-labs/nuver/drivers/dotnet/symbols"
	"github.com/emenda-labs/nuver/pkg/logging"
	"github.com/emenda-labs/nuver/pkg/msbuild"
)

// DefaultExclude skips build output directories.
var DefaultExclude = []string{"**/bin/**", "**/obj/**"}

// Options configures a Compiler.
type Options struct {
	// Exclude holds doublestar patterns matched against source paths relative
	// to the project directory. Nil means DefaultExclude.
	Exclude []string
	Logger  *slog.Logger
}

// Compiler produces symbols.Compilation values from C# sources.
type Compiler struct {
	exclude []string
	logger  *slog.Logger
}

// NewCompiler creates a Compiler.
func NewCompiler(opts Options) *Compiler {
	exclude := opts.Exclude
	if exclude == nil {
		exclude = DefaultExclude
	}
	return &Compiler{exclude: exclude, logger: logging.OrDiscard(opts.Logger)}
}

// Compile parses every .cs file under the project's directory. The target is
// recorded on the result but does not select sources.
func (c *Compiler) Compile(ctx context.Context, projectPath, target string) (*symbols.Compilation, error) {
	proj, err := msbuild.Load(projectPath)
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}

	files, err := c.sources(ctx, proj.Dir())
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no C# sources found under %s", proj.Dir())
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(csharp.GetLanguage())

	b := newBuilder()
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		tree, err := parser.ParseCtx(ctx, nil, src)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		root := tree.RootNode()
		if root.HasError() {
			line := firstErrorLine(root)
			c.logger.Warn("syntax errors in source, declarations may be incomplete",
				"file", path, "line", line)
		}
		b.file(root, src)
		tree.Close()
	}

	c.logger.Debug("parsed sources", "project", proj.Path, "target", target, "files", len(files))
	return &symbols.Compilation{
		AssemblyName:    proj.AssemblyName,
		Target:          target,
		GlobalNamespace: b.finish(),
	}, nil
}

// sources lists .cs files under dir, sorted, skipping symlinks and excluded
// paths.
func (c *Compiler) sources(ctx context.Context, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".cs") || c.excluded(rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking sources at %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func (c *Compiler) excluded(rel string) bool {
	for _, pattern := range c.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func firstErrorLine(n *sitter.Node) int {
	if n.IsError() || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		return firstErrorLine(child)
	}
	return int(n.StartPoint().Row) + 1
}
