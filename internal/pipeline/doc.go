// Package pipeline turns an article body into the HTML fragment placed in a
// page: Markdown conversion, then {static} and {filename} link rewriting.
package pipeline
