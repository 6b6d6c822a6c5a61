// Command avalonsim runs self-checking Avalon bus scenarios. A stream
// scenario sends random packets from a packet driver to a packet monitor
// under throttling and back-pressure. A memory scenario runs random single
// and burst transactions from a master against the burst memory and checks
// every read against a shadow copy.
package main

func main() {
	execute()
}
