// Package util provides common utility functions used across the x-oauth2 module.
//
// Key utilities:
//   - SafeTruncate: Safely truncates strings for logging sensitive data
//   - SummarizeBody: Single-line, bounded rendering of HTTP response bodies
package util
