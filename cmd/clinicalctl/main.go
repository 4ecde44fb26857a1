// Command clinicalctl runs and operates the clinical hours compliance
// engine: the REST API, the background worker and one-off maintenance
// commands against the configured record store.
package main

func main() {
	Execute()
}
