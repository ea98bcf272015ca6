package barcode

import (
	gozxing "github.com/makiuchi-d/gozxing"
)

var formatNames = map[Format]string{
	FormatUnknown:    "unknown",
	FormatQR:         "qr_code",
	FormatDataMatrix: "data_matrix",
	FormatAztec:      "aztec",
	FormatPDF417:     "pdf417",
	FormatCode128:    "code_128",
	FormatCode39:     "code_39",
	FormatEAN8:       "ean_8",
	FormatEAN13:      "ean_13",
	FormatUPCA:       "upc_a",
	FormatUPCE:       "upc_e",
	FormatITF:        "itf",
	FormatCodabar:    "codabar",
}

// String returns the symbology name used in JSON output and by detector
// backends ("qr_code", "ean_13", ...).
func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// ParseFormat is the inverse of Format.String.
func ParseFormat(s string) (Format, bool) {
	for f, name := range formatNames {
		if name == s {
			return f, true
		}
	}
	return FormatUnknown, false
}

func mapFormatToZXing(f Format) (gozxing.BarcodeFormat, bool) {
	switch f {
	case FormatQR:
		return gozxing.BarcodeFormat_QR_CODE, true
	case FormatDataMatrix:
		return gozxing.BarcodeFormat_DATA_MATRIX, true
	case FormatAztec:
		return gozxing.BarcodeFormat_AZTEC, true
	case FormatPDF417:
		return gozxing.BarcodeFormat_PDF_417, true
	case FormatCode128:
		return gozxing.BarcodeFormat_CODE_128, true
	case FormatCode39:
		return gozxing.BarcodeFormat_CODE_39, true
	case FormatEAN8:
		return gozxing.BarcodeFormat_EAN_8, true
	case FormatEAN13:
		return gozxing.BarcodeFormat_EAN_13, true
	case FormatUPCA:
		return gozxing.BarcodeFormat_UPC_A, true
	case FormatUPCE:
		return gozxing.BarcodeFormat_UPC_E, true
	case FormatITF:
		return gozxing.BarcodeFormat_ITF, true
	case FormatCodabar:
		return gozxing.BarcodeFormat_CODABAR, true
	default:
		return 0, false
	}
}

// FormatFromZXing maps a gozxing symbology to Format.
func FormatFromZXing(bf gozxing.BarcodeFormat) Format {
	switch bf {
	case gozxing.BarcodeFormat_QR_CODE:
		return FormatQR
	case gozxing.BarcodeFormat_DATA_MATRIX:
		return FormatDataMatrix
	case gozxing.BarcodeFormat_AZTEC:
		return FormatAztec
	case gozxing.BarcodeFormat_PDF_417:
		return FormatPDF417
	case gozxing.BarcodeFormat_CODE_128:
		return FormatCode128
	case gozxing.BarcodeFormat_CODE_39:
		return FormatCode39
	case gozxing.BarcodeFormat_EAN_8:
		return FormatEAN8
	case gozxing.BarcodeFormat_EAN_13:
		return FormatEAN13
	case gozxing.BarcodeFormat_UPC_A:
		return FormatUPCA
	case gozxing.BarcodeFormat_UPC_E:
		return FormatUPCE
	case gozxing.BarcodeFormat_ITF:
		return FormatITF
	case gozxing.BarcodeFormat_CODABAR:
		return FormatCodabar
	default:
		return FormatUnknown
	}
}

// zxingHints builds the gozxing hint map for one pass.
func zxingHints(h Hints, tryHarder bool) map[gozxing.DecodeHintType]interface{} {
	hints := make(map[gozxing.DecodeHintType]interface{})
	var formats []gozxing.BarcodeFormat
	for _, f := range h.Formats {
		if bf, ok := mapFormatToZXing(f); ok {
			formats = append(formats, bf)
		}
	}
	if len(formats) > 0 {
		hints[gozxing.DecodeHintType_POSSIBLE_FORMATS] = formats
	}
	if tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	if h.CharacterSet != "" {
		hints[gozxing.DecodeHintType_CHARACTER_SET] = h.CharacterSet
	}
	return hints
}
