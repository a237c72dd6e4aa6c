// Command diag inspects a running cooling controller: bus scan, raw sensor
// read and control state.
package main

import "cooling_control/cmd/diag/commands"

func main() {
	commands.Execute()
}
