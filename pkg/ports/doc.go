/*
Package ports defines the interfaces the tendril core consumes from its collaborators.

These interfaces decouple parsing, execution and reconciliation from concrete stores,
persistence backends and rendering surfaces.

# Key Interfaces

  - EntityStore: the live, authoritative mapping of titles to entities with batched change notification.
  - EntityRepository: durable persistence of entities (Loam, Redis, SQLite).
  - OutputSink: the surface that realized nodes are written to (DOM-like or an in-memory recorder).
*/
package ports
