// Command screener crawls a paginated equity screener into CSV, either
// as a one-shot CLI run or as an HTTP service.
package main

import "github.com/equitylab/screener-crawler/internal/cli"

func main() {
	cli.Execute()
}
