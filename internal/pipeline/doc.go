// Package pipeline orchestrates batch transcription runs: scanning for
// pending media, driving each file through validation, hashing, recognition,
// diarization, and output, and persisting every outcome to the registry
// before moving on.
//
// Two invariants shape the code here. At most one model slot is open at any
// time (the recognition+alignment handle and the diarization handle never
// coexist), and the registry plus outputs are always consistent on disk: the
// registry is saved after every file, and both registry and output writes go
// through temp-file-then-rename.
package pipeline
