package definition

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/fsutil"
	"github.com/specialistvlad/cookbridge/internal/param"
)

// Load reads every .hcl file under paths, which may be files or directories,
// and returns the definitions by name. Missing paths are skipped. An asset
// declared twice is an error.
func Load(ctx context.Context, paths ...string) (map[string]*Definition, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered definition files.", "count", len(files))

	defs := make(map[string]*Definition)
	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, block := range root.Assets {
			def, err := translateAsset(ctx, file, block)
			if err != nil {
				return nil, err
			}
			if prev, dup := defs[def.Name]; dup {
				return nil, fmt.Errorf("asset '%s' declared in both %s and %s", def.Name, prev.File, file)
			}
			defs[def.Name] = def
		}
	}

	logger.Debug("Definition loading complete.", "assets", len(defs))
	return defs, nil
}

func translateAsset(ctx context.Context, file string, a *assetBlock) (*Definition, error) {
	if a.Library == "" {
		return nil, fmt.Errorf("in asset '%s': library must not be empty", a.Name)
	}
	specs := make([]param.Spec, 0, len(a.Parameters))
	for _, p := range a.Parameters {
		spec, err := translateParameter(ctx, a.Name, p)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	schema, err := param.NewSchema(specs...)
	if err != nil {
		return nil, fmt.Errorf("in asset '%s': %w", a.Name, err)
	}
	return &Definition{
		Name:        a.Name,
		Description: a.Description,
		Library:     a.Library,
		File:        file,
		Schema:      schema,
		Marshaller:  param.NewMarshaller(schema),
	}, nil
}

// findHCLFiles expands paths into a de-duplicated list of .hcl files.
func findHCLFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			all = append(all, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("error walking directory %s: %w", path, err)
		}
		for _, f := range found {
			add(f)
		}
	}
	return all, nil
}
