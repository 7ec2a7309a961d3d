// Package netxml parses dlib net_to_xml() documents into an ordered list of
// layers.
//
// The document lists layers from the network's output toward its input, so
// the returned slice is in reverse topological order with the input layer
// last. Two marker elements never become layers of their own: a
// type="tag" layer names an anchor attached to the next genuine layer, and a
// type="skip" layer redirects the input edge of the most recently completed
// layer to that anchor.
package netxml
