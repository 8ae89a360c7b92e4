/*
Package tendril renders wikitext entities and keeps the renderings current.

Source text is parsed by a pluggable grammar into a tree of text, element and
macro nodes. Executing the tree against an entity store expands macros and
records, for every node, which entities it read. When the store reports a batch
of changes, the reconciler re-executes only the nodes whose dependencies
changed and emits a minimal edit script to an output sink.

# Usage

	wiki, err := tendril.New()
	if err != nil {
		log.Fatal(err)
	}
	wiki.Put(domain.NewTextEntity("Home", "! Hello\n\nSee [[Other]]."))

	html, err := wiki.RenderEntity("Home", render.FormatHTML)

Live renderings are mounted into an OutputSink and reconciled on every Tick:

	sink := memory.NewSink()
	m := wiki.Mount("Home", sink, nil)
	wiki.Put(domain.NewTextEntity("Other", "now it exists"))
	wiki.Tick()
	fmt.Println(m.LastStats())

A repository (loam, redis or sqlite) can back the store: Load reads it in,
Persist writes changes through and Sync applies changes made on disk.
*/
package tendril
