// Package detector wraps optional native QR detectors behind a fast path
// that the decode pipeline consults before rasterizing anything.
//
// A FastPath probes its backend once for QR support. Concurrent first callers
// share the same in-flight probe and the outcome is cached until Reset.
// Detection never fails: backend errors and panics yield zero regions.
package detector
