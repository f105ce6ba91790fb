// Package agent runs one request through the tool loop: connect, discover,
// plan, resolve arguments, invoke, compose.
//
// Invariants:
// - Runs on one Runner are serialized; they share a single session slot.
// - Only a connection failure aborts a run. Every other failure is carried
//   into the composed reply.
// - Every run that reaches Connecting appends exactly one history entry.
//
// Usage:
//
//	runner, _ := agent.NewRunner(agent.Config{
//		Sessions: session.New(nil),
//		Provider: provider,
//		Agent:    cfg.Agent,
//	})
//	entry, err := runner.Run(ctx, agent.Request{
//		Transport: mcpclient.KindSocket,
//		Endpoint:  "ws://localhost:8000/ws",
//		Text:      "summarize sample.txt",
//	})
package agent
