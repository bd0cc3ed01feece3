// Package zipindex builds a verified table of contents for a ZIP/JAR image
// held in memory.
//
// Building an index takes two passes over the same bytes. The first walks the
// local file headers from the start of the image and checks every name against
// the entry the zip codec reports for the same payload. The second walks the
// central directory and accepts a record only if its declared local-header
// offset lands on a header from the first pass carrying the same name. The
// walk ends at an end-of-central-directory record (classic or Zip64) whose
// disk numbers and entry counts must agree with what was consumed.
//
// Any disagreement between the two structures aborts the build; no partial
// table of contents is ever returned. Every offset in a TOC therefore points
// at a local file header that names the entry it is filed under.
package zipindex
