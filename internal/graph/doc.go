// Package graph wraps a parsed layer list in forward order and resolves
// each layer's input edge, honoring tag/skip redirection over the otherwise
// linear chain.
package graph
