// Package media stores uploaded gallery files.
//
// DiskStorage writes into a local directory; ObjectStorage writes to an
// S3-compatible bucket through minio-go. Both accept only flat names.
package media
