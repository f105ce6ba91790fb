// Package session owns the live tool-server connection of a client slot.
//
// Invariants:
// - At most one live session per Manager.
// - A session is keyed by (transport kind, endpoint); acquiring a different
//   key closes the previous session before the new one is opened.
// - A failed connect leaves the slot empty.
//
// Usage:
//
//	mgr := session.New(nil)
//	defer mgr.Close()
//	sess, err := mgr.Acquire(ctx, mcpclient.KindSocket, "ws://localhost:8000/ws")
//	tools, _ := sess.Client.DiscoverTools(ctx)
package session
