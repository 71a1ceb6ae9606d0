// Package main provides the entry point for the papergrab CLI.
//
// papergrab drives the past-papers wizard of a qualifications portal in a
// browser, collects the question papers and marking schemes it lists, and
// stores them in a deterministic folder layout.
//
// Usage:
//
//	papergrab fetch --subject Mathematics --series "June 2023"
//	papergrab history
//
// See --help for all available options.
package main

// main is the entry point for papergrab.
func main() {
	Execute()
}
