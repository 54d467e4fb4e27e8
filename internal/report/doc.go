// Package report aggregates registry entries into batch statistics and
// renders them as terminal tables.
package report
