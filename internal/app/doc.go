// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the primary execution lifecycle, decoupled
// from any specific entrypoint like a CLI or server.
//
// An App loads asset definitions and a scene, opens an engine session and
// drives the bridge's update cycle until the scene is cooked or, in watch
// mode, until its context is cancelled.
package app
