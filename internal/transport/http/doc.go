// Package http contains the chi handlers exposing the holdings
// pipeline as a JSON API. Handlers validate at the boundary, map
// pipeline errors to RFC 7807 response categories, and never reach
// into the pipeline beyond the service interfaces defined here.
package http
