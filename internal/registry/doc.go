// Package registry is the durable, content-addressed record of processing
// outcomes.
//
// The whole registry is one JSON object mapping hex SHA-256 digests to entry
// objects, persisted as a single file under the output tree. At most one
// entry exists per hash; writing an entry for a known hash overwrites it
// (latest wins). Saves go through a temp file and an atomic rename, so the
// on-disk file is always either the previous complete state or the new
// complete state.
//
// Every durable decision in the pipeline is an Upsert followed by a Save
// before the corresponding file is reported finished. A crash between the two
// leaves the previous state intact and the file is retried on the next run.
package registry
