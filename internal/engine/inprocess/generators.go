package inprocess

import (
	"context"
	"fmt"
	"math"

	"github.com/specialistvlad/cookbridge/internal/engine"
)

func floatParam(params engine.ParamSet, name string, def float64) float64 {
	if p, ok := params[name]; ok && p.Storage == engine.ParmFloat && len(p.Floats) == 1 {
		return p.Floats[0]
	}
	return def
}

func intParam(params engine.ParamSet, name string, def int) int {
	if p, ok := params[name]; ok && p.Storage == engine.ParmInt && len(p.Ints) == 1 {
		return p.Ints[0]
	}
	return def
}

func stringParam(params engine.ParamSet, name string) (string, bool) {
	if p, ok := params[name]; ok && p.Storage == engine.ParmString && len(p.Strings) == 1 {
		return p.Strings[0], true
	}
	return "", false
}

// decorate adds the optional detail attributes every generator supports:
// "color" (4 floats) becomes Cd and "material" becomes shop_materialpath.
func decorate(part *engine.Part, params engine.ParamSet) {
	if p, ok := params["color"]; ok && p.Storage == engine.ParmFloat && len(p.Floats) == 4 {
		part.Attributes = append(part.Attributes,
			engine.Attribute{Name: "Cd", Owner: engine.OwnerDetail, Storage: engine.StorageFloat, TupleSize: 3, Floats: p.Floats[:3]},
			engine.Attribute{Name: "Alpha", Owner: engine.OwnerDetail, Storage: engine.StorageFloat, TupleSize: 1, Floats: p.Floats[3:]},
		)
	}
	if m, ok := stringParam(params, "material"); ok {
		part.Attributes = append(part.Attributes, engine.Attribute{
			Name: "shop_materialpath", Owner: engine.OwnerDetail, Storage: engine.StorageString, TupleSize: 1, Strings: []string{m},
		})
	}
}

// Box generates an axis-aligned cube of edge "size" centred on the origin,
// with per-vertex normals and uvs.
func Box(ctx context.Context, params engine.ParamSet) (engine.Geometry, error) {
	if err := ctx.Err(); err != nil {
		return engine.Geometry{}, err
	}
	h := floatParam(params, "size", 1) / 2
	if h <= 0 {
		return engine.Geometry{}, fmt.Errorf("box size must be positive")
	}

	points := []float64{
		-h, -h, -h, h, -h, -h, h, h, -h, -h, h, -h,
		-h, -h, h, h, -h, h, h, h, h, -h, h, h,
	}
	faces := [6][4]int{
		{0, 3, 2, 1}, {4, 5, 6, 7}, {0, 1, 5, 4},
		{2, 3, 7, 6}, {1, 2, 6, 5}, {3, 0, 4, 7},
	}
	normals := [6][3]float64{
		{0, 0, -1}, {0, 0, 1}, {0, -1, 0},
		{0, 1, 0}, {1, 0, 0}, {-1, 0, 0},
	}
	quadUV := []float64{0, 0, 1, 0, 1, 1, 0, 1}

	part := engine.Part{Name: "box", PointCount: 8}
	var n, uv []float64
	for f, face := range faces {
		part.FaceCounts = append(part.FaceCounts, 4)
		part.VertexList = append(part.VertexList, face[:]...)
		for k := 0; k < 4; k++ {
			n = append(n, normals[f][:]...)
		}
		uv = append(uv, quadUV...)
	}
	part.Attributes = []engine.Attribute{
		{Name: "P", Owner: engine.OwnerPoint, Storage: engine.StorageFloat, TupleSize: 3, Floats: points},
		{Name: "N", Owner: engine.OwnerVertex, Storage: engine.StorageFloat, TupleSize: 3, Floats: n},
		{Name: "uv", Owner: engine.OwnerVertex, Storage: engine.StorageFloat, TupleSize: 2, Floats: uv},
	}
	decorate(&part, params)
	return engine.Geometry{Parts: []engine.Part{part}}, nil
}

// Grid generates a rows × cols grid of quads of edge "size" in the XZ plane.
// Zero rows or columns produce points but no primitives.
func Grid(ctx context.Context, params engine.ParamSet) (engine.Geometry, error) {
	rows := intParam(params, "rows", 10)
	cols := intParam(params, "cols", 10)
	size := floatParam(params, "size", 1)
	if rows < 0 || cols < 0 {
		return engine.Geometry{}, fmt.Errorf("grid rows and cols must not be negative")
	}

	part := engine.Part{Name: "grid", PointCount: (rows + 1) * (cols + 1)}
	pos := make([]float64, 0, part.PointCount*3)
	uv := make([]float64, 0, part.PointCount*2)
	for r := 0; r <= rows; r++ {
		for c := 0; c <= cols; c++ {
			pos = append(pos, float64(c)*size, 0, float64(r)*size)
			uv = append(uv, ratio(c, cols), ratio(r, rows))
		}
	}
	for r := 0; r < rows; r++ {
		if err := ctx.Err(); err != nil {
			return engine.Geometry{}, err
		}
		for c := 0; c < cols; c++ {
			i := r*(cols+1) + c
			part.FaceCounts = append(part.FaceCounts, 4)
			part.VertexList = append(part.VertexList, i, i+cols+1, i+cols+2, i+1)
		}
	}
	part.Attributes = []engine.Attribute{
		{Name: "P", Owner: engine.OwnerPoint, Storage: engine.StorageFloat, TupleSize: 3, Floats: pos},
		{Name: "uv", Owner: engine.OwnerPoint, Storage: engine.StorageFloat, TupleSize: 2, Floats: uv},
	}
	decorate(&part, params)
	return engine.Geometry{Parts: []engine.Part{part}}, nil
}

func ratio(i, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(i) / float64(n)
}

// Sphere generates a latitude/longitude sphere of radius "rad" with
// "divisions" rings and twice as many segments.
func Sphere(ctx context.Context, params engine.ParamSet) (engine.Geometry, error) {
	rad := floatParam(params, "rad", 1)
	rings := intParam(params, "divisions", 12)
	if rings < 2 {
		return engine.Geometry{}, fmt.Errorf("sphere needs at least 2 divisions, got %d", rings)
	}
	segs := rings * 2

	// Point 0 is the north pole, the last point the south pole.
	pos := []float64{0, rad, 0}
	nrm := []float64{0, 1, 0}
	for r := 1; r < rings; r++ {
		if err := ctx.Err(); err != nil {
			return engine.Geometry{}, err
		}
		phi := math.Pi * float64(r) / float64(rings)
		for s := 0; s < segs; s++ {
			theta := 2 * math.Pi * float64(s) / float64(segs)
			x, y, z := math.Sin(phi)*math.Cos(theta), math.Cos(phi), math.Sin(phi)*math.Sin(theta)
			pos = append(pos, x*rad, y*rad, z*rad)
			nrm = append(nrm, x, y, z)
		}
	}
	pos = append(pos, 0, -rad, 0)
	nrm = append(nrm, 0, -1, 0)
	south := len(pos)/3 - 1

	ring := func(r, s int) int { return 1 + (r-1)*segs + s%segs }

	part := engine.Part{Name: "sphere", PointCount: south + 1}
	for s := 0; s < segs; s++ {
		part.FaceCounts = append(part.FaceCounts, 3)
		part.VertexList = append(part.VertexList, 0, ring(1, s+1), ring(1, s))
	}
	for r := 1; r < rings-1; r++ {
		for s := 0; s < segs; s++ {
			part.FaceCounts = append(part.FaceCounts, 4)
			part.VertexList = append(part.VertexList, ring(r, s), ring(r, s+1), ring(r+1, s+1), ring(r+1, s))
		}
	}
	for s := 0; s < segs; s++ {
		part.FaceCounts = append(part.FaceCounts, 3)
		part.VertexList = append(part.VertexList, south, ring(rings-1, s), ring(rings-1, s+1))
	}
	part.Attributes = []engine.Attribute{
		{Name: "P", Owner: engine.OwnerPoint, Storage: engine.StorageFloat, TupleSize: 3, Floats: pos},
		{Name: "N", Owner: engine.OwnerPoint, Storage: engine.StorageFloat, TupleSize: 3, Floats: nrm},
	}
	decorate(&part, params)
	return engine.Geometry{Parts: []engine.Part{part}}, nil
}
