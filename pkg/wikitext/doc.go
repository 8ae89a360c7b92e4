/*
Package wikitext provides the default markup grammar and the core macro set.

Block rules recognize headings, horizontal rules, lists, code blocks, macro calls
standing alone on a line and HTML elements whose open tag ends the line. Run rules
recognize macro calls, pretty links, transclusions, HTML elements, external links,
CamelCase wiki links, emphasis and inline code.

Elements whose tag starts with an underscore, such as <_list filter="[tag[x]]">, are
macro calls written in element syntax: attributes become named parameters and the
element body becomes the macro content.
*/
package wikitext
