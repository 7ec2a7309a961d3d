package layer

// DetailType is a closed enumeration of the layer detail elements the
// converter understands. Anything outside the set parses as DetailUnknown
// and is rejected at translation time with the original element name.
type DetailType int

const (
	DetailUnknown DetailType = iota

	// input variants
	DetailInput
	DetailInputRGBImage
	DetailInputRGBImageSized

	// computational variants
	DetailCon
	DetailRelu
	DetailMaxPool
	DetailAvgPool
	DetailFC
	DetailFCNoBias
	DetailBNCon
	DetailBNFC
	DetailAffineCon
	DetailAffineFC
	DetailAffine
	DetailPRelu
	DetailAddPrev
)

var detailByName = map[string]DetailType{
	"input":                 DetailInput,
	"input_rgb_image":       DetailInputRGBImage,
	"input_rgb_image_sized": DetailInputRGBImageSized,
	"con":                   DetailCon,
	"relu":                  DetailRelu,
	"max_pool":              DetailMaxPool,
	"avg_pool":              DetailAvgPool,
	"fc":                    DetailFC,
	"fc_no_bias":            DetailFCNoBias,
	"bn_con":                DetailBNCon,
	"bn_fc":                 DetailBNFC,
	"affine_con":            DetailAffineCon,
	"affine_fc":             DetailAffineFC,
	"affine":                DetailAffine,
	"prelu":                 DetailPRelu,
	"add_prev":              DetailAddPrev,
}

// ParseDetail maps a detail element name onto its DetailType.
func ParseDetail(name string) DetailType {
	return detailByName[name]
}

// paramBearing holds the detail elements whose text content is a learned
// parameter matrix.
var paramBearing = map[DetailType]bool{
	DetailFC:        true,
	DetailFCNoBias:  true,
	DetailCon:       true,
	DetailAffineCon: true,
	DetailAffineFC:  true,
	DetailAffine:    true,
	DetailPRelu:     true,
}

// ParamBearing reports whether elements named name carry a parameter matrix
// as text content.
func ParamBearing(name string) bool {
	return paramBearing[ParseDetail(name)]
}
