// Command dumpcontact exports Android call log, SMS and contacts to CSV.
package main

import "github.com/digiscan/dumpcontact/pkg/cli"

func main() {
	cli.Execute()
}
