// Package strand is an event-loop web framework core.
//
// A single goroutine owns all native connection state; application
// handlers run under a serialization gate and interact with connections
// through handles whose native-touching operations are deferred onto
// the loop and re-checked against the connection's abort flag at
// execution time. A peer that disconnects mid-handler turns every later
// write into a silent no-op instead of a crash.
//
// Minimal usage:
//
//	app := strand.New()
//	app.Get("/users/{id}", func(req *strand.Request, res *strand.Response) {
//		res.End([]byte("user " + req.Param(0)))
//	})
//	app.Listen(context.Background())
package strand
