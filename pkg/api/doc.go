// Package api defines the request and response messages of the SmartSplit
// Connect services. Messages travel as JSON; amounts are encoded as numbers
// with two decimals.
package api
