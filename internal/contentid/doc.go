// Package contentid computes the content digest that identifies an input
// file independently of its path. Two files with identical bytes share a
// digest, which is what drives duplicate detection across the input tree.
package contentid
