/*
Package render executes parse trees against an entity store and keeps realized output up to date.

The pipeline for one mounted tree is:

	Unrendered -> Executed -> Realized -> (Reused | Refreshed | Rebuilt) -> Realized ... -> Detached

Execute binds a parse tree to a context title, runs macros and records what each node
depends on. Realize writes the executed tree to an OutputSink. Reconcile takes one batch of
store changes and updates the realized output: unaffected subtrees keep their handles,
keyed collections are diffed, live nodes resynchronize their value, and any other changed
macro is rebuilt in place.
*/
package render
