// Package httpapi serves templates, their entry schemas and the send flow
// over HTTP:
//
//	GET  /templates               template summaries
//	GET  /templates/{id}          one template
//	GET  /templates/{id}/schema   OpenAPI schema of the send payload
//	POST /templates/{id}/send     {"forms": [...]} -> per-entry results
//	GET  /templates/{id}/status   state of the last attempt
//
// Validation failures answer 422 with the per-field error mapping, a send
// already running for the template answers 409 and capability failures
// answer 502 with the error kind.
package httpapi
