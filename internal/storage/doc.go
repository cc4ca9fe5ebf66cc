// Package storage implements the landing zone for extracted feed documents.
//
// Objects are immutable and date-partitioned:
//
//	<prefix>/year=YYYY/month=MM/day=DD/<file_prefix>_YYYYmmdd_HHMMSS.json[.zst]
//
// Two backends are provided: S3Store for any S3-compatible service (AWS,
// MinIO, Cloudflare R2) and FileStore for a local directory. Objects whose
// key ends in ".zst" are zstd-compressed.
package storage
