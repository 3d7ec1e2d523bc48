package bridge

import "github.com/specialistvlad/cookbridge/internal/geometry"

// Listener receives scene updates. Its methods are called from the goroutine
// running Tick or the host call that caused them, after the bridge has
// released its lock, so they may call back into the Bridge.
type Listener interface {
	OnAssetUpdated(id string, mesh *geometry.Mesh)
	OnCookFailed(id string, diagnostic string)
	OnSessionLost(err error)
}

// ListenerFuncs adapts optional functions to Listener.
type ListenerFuncs struct {
	AssetUpdated func(id string, mesh *geometry.Mesh)
	CookFailed   func(id string, diagnostic string)
	SessionLost  func(err error)
}

func (l ListenerFuncs) OnAssetUpdated(id string, mesh *geometry.Mesh) {
	if l.AssetUpdated != nil {
		l.AssetUpdated(id, mesh)
	}
}

func (l ListenerFuncs) OnCookFailed(id string, diagnostic string) {
	if l.CookFailed != nil {
		l.CookFailed(id, diagnostic)
	}
}

func (l ListenerFuncs) OnSessionLost(err error) {
	if l.SessionLost != nil {
		l.SessionLost(err)
	}
}

// notice is a listener call deferred until the lock is released.
type notice func(Listener)

func assetUpdated(id string, mesh *geometry.Mesh) notice {
	return func(l Listener) { l.OnAssetUpdated(id, mesh) }
}

func cookFailed(id, diagnostic string) notice {
	return func(l Listener) { l.OnCookFailed(id, diagnostic) }
}

func sessionLost(err error) notice {
	return func(l Listener) { l.OnSessionLost(err) }
}
