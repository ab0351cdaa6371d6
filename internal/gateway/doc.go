// Package gateway is the boundary between the test engine and a live,
// tick-stepped world.
//
// Every Gateway call blocks until the world acknowledges it or the context
// ends. Transports that are asynchronous underneath (the websocket Client)
// hide that behind the same request/acknowledge shape, so the engine never
// polls.
//
// Three implementations live here:
//
//   - World: an in-memory simulation with per-tick rules. Used by `flint
//     sim`, by `flint run --sim`, and by tests.
//   - Server: serves a World over websocket.
//   - Client: talks to a Server (or anything speaking the same protocol)
//     and keeps a block snapshot fed by pushed updates.
//
// Block ids are strings of the form namespace:id[prop=value,...]. Reads
// reflect the implementation's latest tracked snapshot.
package gateway
