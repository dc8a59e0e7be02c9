// Package batch splits multi-statement SQL scripts into batches the way SQL
// client tools interpret a GO separator.
//
// The splitter is purely lexical. It knows about comments, quoted strings and
// bracketed identifiers (the exclusion regions) and nothing about SQL itself.
// A line is a separator line when it holds the separator token outside every
// region, as a standalone word, followed only by whitespace or by comments
// that end on the same line:
//
//	SELECT 1
//	GO -- first batch ends here
//	SELECT 'GO' AS [GO]
//	GO
//
// splits into "SELECT 1" and "SELECT 'GO' AS [GO]".
//
// Regions may span lines; a line that starts inside an open region is never
// a separator line. Block comments nest: depth increases once per opening
// token and decreases once per closing token of the same pair, and a token
// never reuses runes of the token matched just before it, so "/*/" opens a
// comment without closing it.
//
// Usage:
//
//	s, err := batch.New(batch.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	batches, err := s.Parse(f)
//
// Batch repeat counts ("GO 10") are not supported; such a line is ordinary
// script text.
package batch
