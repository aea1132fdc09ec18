// Package archive converts workspace trees to and from gzip-compressed
// tar streams for export, backup and bulk import.
package archive
