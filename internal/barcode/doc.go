// Package barcode adapts the gozxing QR decoder to luminance planes produced
// by the decode pipeline.
//
// Every Attempt builds a fresh reader, tries a cheap global-histogram
// binarization first and falls back to the adaptive hybrid binarizer on a
// benign miss. When both fail under normal hints the attempt is repeated once
// with TRY_HARDER. Failures are always returned as *DecodeError carrying a
// Reason; only malformed input yields a plain error.
package barcode
