package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/param"
)

// SceneInstance is one instance placed by a scene file.
type SceneInstance struct {
	ID     string
	Asset  string
	Params param.Snapshot
}

type sceneRoot struct {
	Instances []*instanceBlock `hcl:"instance,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

type instanceBlock struct {
	ID         string         `hcl:"id,label"`
	Asset      string         `hcl:"asset"`
	Parameters hcl.Expression `hcl:"parameters,optional"`
}

// LoadScene reads the instances of a scene file in declaration order.
func LoadScene(ctx context.Context, path string) ([]SceneInstance, error) {
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	var root sceneRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	seen := make(map[string]struct{}, len(root.Instances))
	out := make([]SceneInstance, 0, len(root.Instances))
	for _, b := range root.Instances {
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("in %s: instance '%s' declared more than once", path, b.ID)
		}
		seen[b.ID] = struct{}{}

		params := param.Snapshot{}
		if b.Parameters != nil {
			v, diags := b.Parameters.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("in %s, instance '%s': %w", path, b.ID, diags)
			}
			p, err := param.SnapshotFromObject(v)
			if err != nil {
				return nil, fmt.Errorf("in %s, instance '%s': %w", path, b.ID, err)
			}
			params = p
		}
		out = append(out, SceneInstance{ID: b.ID, Asset: b.Asset, Params: params})
	}
	ctxlog.FromContext(ctx).Debug("Scene loaded.", "path", path, "instances", len(out))
	return out, nil
}
