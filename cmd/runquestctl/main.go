// Command runquestctl runs maintenance jobs against the RunQuest database.
package main

import "runQuestAPI/internal/cli"

func main() {
	cli.Execute()
}
