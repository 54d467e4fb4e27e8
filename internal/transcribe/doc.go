// Package transcribe defines the boundary to the external speech stack:
// transcript types, the Engine interface the pipeline drives, and the pure
// speaker-assignment merge.
//
// An Engine hands out Recognizer and Diarizer handles that hold accelerator
// memory until closed. The pipeline guarantees at most one handle of either
// kind is open at any instant; implementations only need to make Close
// actually release the model.
package transcribe
