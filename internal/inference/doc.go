// Package inference implements the search backend a canvas talks to.
//
// Uploaded documents are extracted, normalised, split into overlapping
// chunks, embedded and stored per document name. A search embeds the
// question, retrieves the closest chunks of the named document and asks
// the selected model, or returns web results for the serpapi model.
package inference
