package registry

import (
	"time"

	"github.com/specialistvlad/cookbridge/internal/geometry"
	"github.com/specialistvlad/cookbridge/internal/param"
)

// ResultKind tags a CookResult.
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultFailure
	ResultCancelled
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	case ResultCancelled:
		return "cancelled"
	}
	return "unknown"
}

// CookResult is the outcome of one cook of an instance.
type CookResult struct {
	Kind ResultKind
	Seq  uint64
	// Mesh and Params are set on success. Params holds the parameter values
	// the engine reported back.
	Mesh   *geometry.Mesh
	Params param.Snapshot
	// Err is set on failure.
	Err      error
	CookedAt time.Time
}

// Success builds a successful result.
func Success(seq uint64, mesh *geometry.Mesh, params param.Snapshot) CookResult {
	return CookResult{Kind: ResultSuccess, Seq: seq, Mesh: mesh, Params: params}
}

// Failure builds a failed result.
func Failure(seq uint64, err error) CookResult {
	return CookResult{Kind: ResultFailure, Seq: seq, Err: err}
}

// Cancelled builds a cancelled result.
func Cancelled(seq uint64) CookResult {
	return CookResult{Kind: ResultCancelled, Seq: seq}
}

// Diagnostic is the failure message, or "" for other kinds.
func (r *CookResult) Diagnostic() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// AssetInstance is one placed asset.
type AssetInstance struct {
	ID         string
	Definition string
	// Params is the current host-side parameter snapshot.
	Params param.Snapshot
	// LastSuccess stays set when later cooks fail.
	LastSuccess *CookResult
	LastFailure *CookResult
	// AppliedSeq is the sequence number of the newest applied result.
	AppliedSeq uint64
	Dirty      bool
	// Restored is set while LastSuccess comes from the result store rather
	// than a cook of this session.
	Restored bool
	PlacedAt time.Time
}

// Mesh returns the mesh the host should display, or nil.
func (a AssetInstance) Mesh() *geometry.Mesh {
	if a.LastSuccess == nil {
		return nil
	}
	return a.LastSuccess.Mesh
}
