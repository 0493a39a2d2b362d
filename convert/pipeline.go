package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/zachatkinson/bf1942-portal-conversion-sub002/config"
	"github.com/zachatkinson/bf1942-portal-conversion-sub002/level"
	"github.com/zachatkinson/bf1942-portal-conversion-sub002/tscn"
)

// Summary reports a run: which files were attempted and which failed.
// Failures never stop the run; independent files are isolated.
type Summary struct {
	Attempted int
	Succeeded int
	Failures  []FileError
}

// FileError pairs a failed input file with its error.
type FileError struct {
	Path string
	Err  error
}

// OK reports whether every attempted file succeeded.
func (s *Summary) OK() bool { return len(s.Failures) == 0 }

func (s *Summary) String() string {
	return fmt.Sprintf("%d/%d files converted, %d failed",
		s.Succeeded, s.Attempted, len(s.Failures))
}

func (s *Summary) fail(path string, err error) {
	s.Failures = append(s.Failures, FileError{Path: path, Err: err})
}

// projectDescriptor is written verbatim beside generated content; it is
// never parsed by this tool.
const projectDescriptor = `; Engine configuration file.
; Generated by the conversion pipeline; edit in the scene editor.

config_version=5

[application]

config/name="BF1942 Portal Conversion"
config/features=PackedStringArray("4.2")

[rendering]

renderer/rendering_method="gl_compatibility"
`

// NewRunContext builds the per-run context from a project file: loads the
// asset-type definitions and registers the project's resource pairs.
func NewRunContext(log *logrus.Logger, proj *config.Project) (*Context, error) {
	assets, err := level.LoadAssetTypes(proj.AssetTypesPath(), log)
	if err != nil {
		return nil, fmt.Errorf("loading asset types: %w", err)
	}
	res := level.NewResources()
	for _, pair := range proj.Resources {
		res.Add(pair.Source, pair.Dest)
	}
	ctx := NewContext(log, assets, res)
	ctx.ResBase = proj.ResBase
	return ctx, nil
}

// BuildProject converts every level the project lists and writes the
// generated scenes plus the fixed project descriptor. A level that fails
// leaves no partial scene file; the others still build.
func BuildProject(ctx *Context, proj *config.Project) *Summary {
	sum := &Summary{}
	for _, name := range proj.Levels {
		sum.Attempted++
		src := proj.LevelPath(name)
		if err := buildLevel(ctx, name, src, proj.ScenePath(name)); err != nil {
			ctx.Log.Errorf("level %s: %v", name, err)
			sum.fail(src, err)
			continue
		}
		sum.Succeeded++
	}

	descPath := filepath.Join(proj.OutRoot, "project.godot")
	if err := writeFileMkdir(descPath, []byte(projectDescriptor)); err != nil {
		ctx.Log.Errorf("project descriptor: %v", err)
		sum.fail(descPath, err)
	}
	ctx.Log.Infof("build: %s", sum)
	return sum
}

func buildLevel(ctx *Context, name, src, dest string) error {
	lvl, err := level.ParseLevel(name, src)
	if err != nil {
		return err
	}
	lvl.Dest = dest
	if n := level.ResolveLevel(lvl, ctx.Assets, ctx.Log); n > 0 {
		ctx.Log.Warnf("level %s: %d instances left unresolved", name, n)
	}
	scene, err := ConvertLevel(ctx, lvl)
	if err != nil {
		return err
	}
	return writeFileMkdir(dest, scene.Marshal())
}

// ImportOne converts one intermediate JSON level file into a scene inside
// an existing project.
func ImportOne(ctx *Context, src, dest string) *Summary {
	sum := &Summary{Attempted: 1}
	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if err := buildLevel(ctx, name, src, dest); err != nil {
		ctx.Log.Errorf("import %s: %v", src, err)
		sum.fail(src, err)
		return sum
	}
	sum.Succeeded = 1
	return sum
}

// ExportOne parses one scene file back into intermediate JSON.
func ExportOne(ctx *Context, src, dest string) *Summary {
	sum := &Summary{Attempted: 1}
	scene, err := tscn.ParseFile(src)
	if err != nil {
		ctx.Log.Errorf("export %s: %v", src, err)
		sum.fail(src, err)
		return sum
	}
	data, skipped, err := ConvertScene(ctx, scene)
	if err != nil {
		ctx.Log.Errorf("export %s: %v", src, err)
		sum.fail(src, err)
		return sum
	}
	if skipped > 0 {
		ctx.Log.Warnf("export %s: %d nodes skipped", src, skipped)
	}
	if err := writeFileMkdir(dest, data); err != nil {
		sum.fail(dest, err)
		return sum
	}
	sum.Succeeded = 1
	return sum
}

// RepathOne rewrites the directory fields inside an asset-type definition
// file, swapping one path prefix for another in place. Only the matched
// fields change; the rest of the document keeps its shape.
func RepathOne(ctx *Context, path, oldPrefix, newPrefix string) (*Summary, error) {
	sum := &Summary{Attempted: 1}
	data, err := os.ReadFile(path)
	if err != nil {
		sum.fail(path, err)
		return sum, err
	}
	if !gjson.ValidBytes(data) {
		err := fmt.Errorf("%w: %s: malformed JSON", ErrStructural, path)
		sum.fail(path, err)
		return sum, err
	}

	patched := data
	changed := 0
	gjson.GetBytes(data, "AssetTypes").ForEach(func(i, def gjson.Result) bool {
		dir := def.Get("directory").String()
		if dir == "" || !strings.HasPrefix(dir, oldPrefix) {
			return true
		}
		next := newPrefix + strings.TrimPrefix(dir, oldPrefix)
		key := fmt.Sprintf("AssetTypes.%d.directory", i.Int())
		patched, err = sjson.SetBytes(patched, key, next)
		if err != nil {
			return false
		}
		changed++
		return true
	})
	if err != nil {
		sum.fail(path, err)
		return sum, err
	}
	if changed > 0 {
		if err := os.WriteFile(path, patched, 0o644); err != nil {
			sum.fail(path, err)
			return sum, err
		}
	}
	ctx.Log.Infof("repath %s: %d directories rewritten", path, changed)
	sum.Succeeded = 1
	return sum, nil
}

func writeFileMkdir(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
