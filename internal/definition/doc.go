// Package definition loads asset definitions from HCL manifests.
//
// A manifest holds one or more asset blocks. Each names the library the
// engine cooks and declares the typed parameters the host may edit:
//
//	asset "rock" {
//	  description = "Procedural rock"
//	  library     = "builtin/sphere"
//
//	  parameter "rad" {
//	    type    = float
//	    default = 1
//	    min     = 0
//	    max     = 10
//	  }
//	}
//
// The Library resolves every definition once, builds its parameter schema and
// marshaller, and hands out the cached result until Reload is called.
package definition
