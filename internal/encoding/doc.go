// Package encoding implements the per-column codecs used by frame snapshots.
//
//   - Delta: delta-of-delta bit packing for integers and timestamps
//   - Gorilla: XOR packing for floats
//   - Dictionary: index packing for repeated strings
//   - RLE: run lengths for validity masks
//
// Every Encode* function has a matching Decode* function. The Pick* helpers
// try the packed form and fall back to the raw one when that is smaller.
package encoding
