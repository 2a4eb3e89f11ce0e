// Package exporter writes calculation results and configurations to
// CSV and XLSX files.
//
// CSVWriter is the core writer with UTF-8 BOM support for Excel
// compatibility and a streaming mode for large batches. ResultsExporter
// builds on it to lay out breadth score reports, and writes the same
// reports as styled XLSX workbooks.
package exporter
