/*
Package domain contains the core value types shared by every stage of the tendril pipeline.

It is kept free of I/O and persistence concerns so that the parser, the executor and the
reconciler can be tested without a store or an output surface.

# Key Types

  - Entity: an immutable bundle of fields keyed by title. Updates produce new values.
  - ChangeSet: one batch of entity mutations delivered to store listeners.
  - Message: a typed request dispatched from a realized node towards its ancestors.
  - LifecycleHooks: callbacks for parse, execute and reconcile observability.
*/
package domain
