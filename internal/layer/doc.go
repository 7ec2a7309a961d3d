// Package layer defines the in-memory representation of one node of a
// reconstructed dlib network: its kind (computational, loss, or input), the
// detail element describing the concrete operation, its numeric attributes,
// its raw parameter matrix, and the tag/skip metadata used to resolve
// non-adjacent input edges.
package layer
