package cli

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pdfseal/pdfseal"
)

func VerifyCommand() {
	verifyFlags := flag.NewFlagSet("verify", flag.ExitOnError)

	verifyFlags.Usage = func() {
		fmt.Printf("Usage: %s verify <input.pdf>\n\n", os.Args[0])
		fmt.Println("Verify the digital signatures of a PDF file and print the result as JSON")
	}

	if err := verifyFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse verify flags: %v", err)
		osExit(1)
		return
	}
	if len(verifyFlags.Args()) < 1 {
		verifyFlags.Usage()
		osExit(1)
		return
	}

	input, err := os.ReadFile(verifyFlags.Arg(0))
	if err != nil {
		log.Printf("Failed to read input: %v", err)
		osExit(1)
		return
	}

	response, err := pdfseal.Verify(input)
	if err != nil {
		log.Printf("Failed to verify: %v", err)
		osExit(1)
		return
	}
	printJSON(response)
}
