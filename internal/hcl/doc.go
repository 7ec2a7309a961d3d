// Package hcl implements the config.Loader interface on top of HCL,
// decoding an optional converter options file with defaults applied for any
// attribute the file leaves out.
package hcl
