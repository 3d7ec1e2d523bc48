// Package config loads the bridge's HCL configuration and the scene files the
// CLI cooks.
//
// A configuration file may hold a session, a translator and a store block.
// Every block and attribute is optional; omitted values keep the defaults of
// Default. Durations are strings in time.ParseDuration form.
//
//	session {
//	  transport    = "remote"
//	  url          = "http://127.0.0.1:7070/hapi"
//	  max_attempts = 5
//	  poll_interval = "10ms"
//	}
//
//	translator {
//	  scale   = 100
//	  swap_yz = true
//	  attribute "Cs" { channel = "color" }
//	}
//
//	store {
//	  backend = "badger"
//	  path    = ".cookbridge/results"
//	}
//
// A scene file places asset instances:
//
//	instance "rock-1" {
//	  asset      = "rock"
//	  parameters = { rad = 5 }
//	}
package config
