// Package linkstream provides a GraphQL API server for a link-sharing
// service: users post links, vote on them, and subscribe to live
// updates as new links arrive.
//
// # Architecture
//
// The server is a thin GraphQL gateway over a document store and an
// event bus:
//
//	┌─────────────────────────────────────┐
//	│        GraphQL Gateway              │  HTTP + WebSocket,
//	│  (queries, mutations, subs)         │  auth, per-request loaders
//	└─────────────────────────────────────┘
//	        ↓ reads/writes         ↓ publishes
//	┌──────────────────┐   ┌──────────────────┐
//	│  Document Store  │   │    Event Bus     │
//	│ (JetStream KV or │   │ (NATS subjects or│
//	│   in-memory)     │   │   in-process)    │
//	└──────────────────┘   └──────────────────┘
//
// Every query and mutation flows through the resolver layer in
// gateway/graphql. Entity lookups inside a request go through
// request-scoped batching loaders so that resolving N links with the
// same author costs one store round trip, not N. Mutations publish
// typed events on the bus; subscription resolvers bridge bus
// subscriptions onto GraphQL subscription channels.
//
// # Packages
//
// Core:
//   - gateway/graphql: schema, resolvers, HTTP/WebSocket server
//   - store: entities, filter evaluation, KV and in-memory stores
//   - loader: generic request-scoped batching loader
//   - eventbus: pub/sub bus, in-process and NATS backed
//   - auth: bearer-token authentication and password hashing
//
// Infrastructure:
//   - natsclient: NATS connection and JetStream KV management
//   - config: YAML configuration loading and validation
//   - errors: structured error handling with severity classification
//   - pkg/retry: retry policies for transient store failures
//
// # Backends
//
// Both the store and the bus have two implementations behind one
// interface. The memory backends serve tests and single-process
// development; the NATS backends serve deployments where state and
// events must survive a process or span several of them. The pairing
// is free: a memory store with a NATS bus is a valid configuration.
//
// # Usage
//
// Run the server with defaults (in-memory store, in-process bus):
//
//	./bin/linkstream -store memory -bus memory
//
// Or against NATS with a config file:
//
//	./bin/linkstream -config configs/linkstream.yaml
//
// The GraphQL endpoint serves POST queries and WebSocket subscriptions
// on the same path; a playground is available at the root in
// development.
package linkstream
