// Package internaldefs holds the metric names and bucket boundaries shared by the exporter
// implementations.
//
// Both the Prometheus and OTel exporters read their definitions from here so that they
// expose identical names. Changing a definition changes every exporter.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
