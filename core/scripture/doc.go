// Package scripture resolves free-form Bible citations against an in-memory verse dataset.
//
// A citation such as "John 3:16-18" goes through three steps:
//
//   - ParseReference turns the text into a Reference (book, chapter, verse range).
//   - BookResolver canonicalizes the book name through an alias table
//     ("Psalm" -> "psalms", "Apocalypse" -> "revelation").
//   - Resolver looks the range up in a Dataset and returns the verses that exist.
//
// # Not-found policy
//
// A single-verse request for a missing verse fails with VerseNotFound. A range
// request succeeds with whatever subset of the range exists, and only fails with
// VersesNotFound when none of it does.
//
// # Context
//
// Resolver.WithContext additionally fetches the verse before and after a
// resolved range within the same chapter. Those lookups are best effort: a miss
// yields an empty result, never an error.
//
// Datasets are immutable once built and may be shared by concurrent resolvers.
package scripture
