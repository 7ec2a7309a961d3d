// Package caffe translates a reconstructed dlib network into Python source
// that rebuilds the same network as a caffe model.
//
// Translation has two halves, emitted into one generated file: per-layer
// NetSpec declarations (make_netspec) and per-layer parameter relayout
// (set_network_weights). The relayout side mirrors caffe's storage
// convention by transposing and slicing each layer's raw parameter matrix;
// the final shape is read back from caffe's own declared parameter shape in
// the generated code, never recomputed here.
//
// Only a fixed catalog of dlib layers is convertible. Batch norm layers are
// rejected with guidance to freeze them into affine layers first, and
// pooling layers with non-zero padding are rejected because dlib and caffe
// disagree on padding semantics.
package caffe
