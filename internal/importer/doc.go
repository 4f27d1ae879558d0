// Package importer discovers the blocks of a rendered page on the server.
//
// The frame normally reports its blocks over the bridge. The importer does
// the same from the outside: it fetches the page in edit mode, decodes it to
// UTF-8, finds every element marked with data-block-id and returns the
// result as a reconcile.Snapshot in document order. The snapshot goes through
// the same merge path as a BLOCKS message.
//
// Fetching uses resty over a retrying transport (go-retryablehttp) behind a
// circuit breaker. Bodies are sniffed with mimetype; charset detection uses
// chardet and golang.org/x/net/html/charset. Elements are selected with a
// CSS selector (goquery) or, when configured, an XPath expression
// (htmlquery). Text is sanitized with bluemonday's strict policy.
//
// Example Usage:
//
//	imp, err := importer.New(importer.Options{SiteOrigin: "http://localhost:3000"})
//	snap, err := imp.Import(ctx, "/demo")
//	st, err := sess.MergeSnapshot(ctx, snap, reconcile.ModeFlat)
package importer
