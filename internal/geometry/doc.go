// Package geometry converts engine cook output into host meshes.
//
// Engine geometry is a list of parts, each a point cloud with polygons given
// as face counts and a flat vertex list, plus named attributes owned by
// points, vertices, primitives or the whole part (detail). The host wants
// flat vertex and triangle index buffers split into material sections.
//
// The Translator emits one host vertex per polygon corner, reads each channel
// from the most specific owner that defines it (vertex, then point, then
// primitive, then detail), fan-triangulates polygons and groups triangles by
// material slot. Attributes that no channel claims are kept as opaque
// metadata.
package geometry
