// Package mem handles sandbox memory: region descriptors with page
// alignment validation, mapping bookkeeping, copy-on-write file views,
// compressed snapshots, and the flat image backing the in-process
// machine.
//
// A [Region] describes caller-owned host memory to expose at a guest
// address. The [Mapper] validates alignment and tracks live mappings; a
// [Snapshot] captures a zstd-compressed, checksummed memory image plus
// the mapping set, so restoring rolls both back together.
package mem
