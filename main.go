// dbibackend serves local files to a USB-attached peer over the DBI
// request/response protocol.
package main

import "dbibackend/cmd"

func main() {
	cmd.Execute()
}
