// Package harvest extracts candidate document links from the results page.
//
// It works on the serialized page source rather than the live browser, so
// a harvest can be repeated on the same source and tested without Chrome.
package harvest
