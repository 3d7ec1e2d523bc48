package definition

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/param"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot decodes the top-level blocks of a manifest.
type fileRoot struct {
	Assets []*assetBlock `hcl:"asset,block"`
	Remain hcl.Body      `hcl:",remain"`
}

type assetBlock struct {
	Name        string            `hcl:"name,label"`
	Description string            `hcl:"description,optional"`
	Library     string            `hcl:"library"`
	Parameters  []*parameterBlock `hcl:"parameter,block"`
}

type parameterBlock struct {
	Name    string         `hcl:"name,label"`
	Label   string         `hcl:"label,optional"`
	Type    hcl.Expression `hcl:"type"`
	Default hcl.Expression `hcl:"default,optional"`
	Min     *float64       `hcl:"min,optional"`
	Max     *float64       `hcl:"max,optional"`
	Size    int            `hcl:"size,optional"`
	Choices []string       `hcl:"choices,optional"`
}

// isExprDefined reports whether an optional attribute was present in the
// source. Omitted attributes decode to zero-width placeholder expressions.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}

// parseKind reads the type attribute, either as a bare keyword (`float`) or
// as a string (`"float"`).
func parseKind(expr hcl.Expression) (param.Kind, error) {
	word := hcl.ExprAsKeyword(expr)
	if word == "" {
		v, diags := expr.Value(nil)
		if diags.HasErrors() || v.IsNull() || !v.Type().Equals(cty.String) {
			return "", fmt.Errorf("type must be a keyword such as float or vector")
		}
		word = v.AsString()
	}
	k, ok := param.ParseKind(word)
	if !ok {
		return "", fmt.Errorf("unknown parameter type %q", word)
	}
	return k, nil
}

func translateParameter(ctx context.Context, asset string, p *parameterBlock) (param.Spec, error) {
	logger := ctxlog.FromContext(ctx).With("asset", asset, "parameter", p.Name)

	kind, err := parseKind(p.Type)
	if err != nil {
		return param.Spec{}, fmt.Errorf("in asset '%s', parameter '%s': %w", asset, p.Name, err)
	}

	spec := param.Spec{
		Name:    p.Name,
		Label:   p.Label,
		Kind:    kind,
		Size:    p.Size,
		Min:     p.Min,
		Max:     p.Max,
		Choices: p.Choices,
	}
	if isExprDefined(p.Default) {
		v, diags := p.Default.Value(nil)
		if diags.HasErrors() {
			return param.Spec{}, fmt.Errorf("in asset '%s', parameter '%s': %w", asset, p.Name, diags)
		}
		spec.Default = v
	} else {
		spec.Default = cty.NullVal(cty.DynamicPseudoType)
	}
	logger.Debug("Parameter translated.", "kind", kind, "has_default", !spec.Default.IsNull())
	return spec, nil
}
