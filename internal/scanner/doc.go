// Package scanner discovers candidate media files under the input tree and
// mirrors their paths into the output tree.
package scanner
