// Command extractor turns vendor statement PDFs into normalized spreadsheets
// with an audit report. Documents are dispatched by `submit` or `watch`,
// processed by `worker`, and the remote extraction capability is served by
// `serve`.
package main

func main() {
	Execute()
}
