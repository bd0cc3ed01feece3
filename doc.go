// Package memarchive serves code and resources straight out of ZIP and JAR
// images that live in memory.
//
// Archive images are registered with a [Registry] under a logical path. The
// registry hands back a [Handle] and forgets the path once the last handle is
// unreachable, so registrations are reclaimed by the garbage collector rather
// than by explicit unregistration.
//
// A [Resolver] binds an ordered list of handles. Construction indexes every
// archive up front; an archive whose local headers and central directory
// disagree is rejected with [ErrDecode]. Lookups search the archives in order:
//
//	lib1, err := memarchive.Register("/lib1.jar", lib1Bytes)
//	if err != nil {
//		return err
//	}
//	lib2, err := memarchive.Register("/lib2.jar", lib2Bytes)
//	if err != nil {
//		return err
//	}
//	res, err := memarchive.NewResolver([]*memarchive.Handle{lib1, lib2})
//	if err != nil {
//		return err
//	}
//	r, err := res.ReadResource("pkg/One.class")
//
// Stored entries are returned as views of the registered bytes without
// copying. Deflated and zstd entries are decoded and checked against their
// CRC-32.
//
// The resolver pins the archive bytes it was built over, not the handles, so
// it keeps working after every handle has been dropped and the registry entry
// reclaimed.
//
// A [Loader] layers class loading on top of a resolver. Turning bytecode into
// something executable is left to a caller supplied [Definer].
package memarchive
