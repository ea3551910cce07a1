// Package storage implements the lake's partitioned parquet storage layer.
//
// Three write modes carry the layer contracts:
//
//   - WriteSnapshot: bronze raw data. Hierarchical year=/month=/day=
//     partitions, one uniquely time-stamped file per ingestion run, never
//     overwritten. Immutable history, full replay.
//   - AppendByDate: silver fact tables. Flat date=YYYY-MM-DD partitions; a
//     partition accumulates files across runs.
//   - Overwrite: dimensions and gold aggregate tables. Each run's output
//     fully replaces the prior table; these tables are derived and
//     recomputable, not accumulative history.
//
// Partition paths are a pure function of the partition key and base path.
package storage
