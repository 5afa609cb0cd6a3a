// Package compiler implements the SCSS subset used by stylecache: @import
// resolution (reporting every file read as Tree.Files), variables, nesting with
// the & parent reference, whitelisted math functions, and the expanded/compact/
// compressed output styles. The orchestrator treats it as an opaque
// Parse → Render pair; Parse is cheap and always runs, Render is what the
// caches try to avoid.
package compiler
