// Package heritage provides the catalogue service for cultural-heritage
// entries: browsing and searching published entries, the contribution
// workflow that moves submissions through moderation, and engagement
// counters (views, likes, favorites).
//
// A single Service interface orchestrates the work. Persistence is
// pluggable through Repository (memory and Postgres implementations live
// under repo/), image payloads through ImageStore (inline data URIs or S3
// under imagestore/), and lifecycle notifications through EventSink.
//
// Counters
//
// Views, likes and category counts are never updated with a
// read-then-write in this package. Repositories expose atomic primitives
// (IncrementViews, ToggleLike, CreateEntry/DeleteEntry adjusting the
// category count in the same transaction) and the service only calls
// those. The reconcile subpackage recomputes category counts from the entry
// table to repair drift left by out-of-band edits.
//
// Capabilities
//
// Callers pass what they are allowed to do explicitly: Access for list
// visibility and Identity for mutations. The service never infers a role
// from request contents.
package heritage
