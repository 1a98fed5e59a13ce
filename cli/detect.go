package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pdfseal/pdfseal"
)

func DetectCommand() {
	detectFlags := flag.NewFlagSet("detect", flag.ExitOnError)

	detectFlags.Usage = func() {
		fmt.Printf("Usage: %s detect <input.pdf>\n\n", os.Args[0])
		fmt.Println("Report the signature and LTV markers of a PDF file as JSON")
	}

	if err := detectFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse detect flags: %v", err)
		osExit(1)
		return
	}
	if len(detectFlags.Args()) < 1 {
		detectFlags.Usage()
		osExit(1)
		return
	}

	input, err := os.ReadFile(detectFlags.Arg(0))
	if err != nil {
		log.Printf("Failed to read input: %v", err)
		osExit(1)
		return
	}

	printJSON(pdfseal.Detect(input))
}

func InspectCommand() {
	inspectFlags := flag.NewFlagSet("inspect", flag.ExitOnError)
	password := inspectFlags.String("password", "", "Password of the PKCS#12 credential")

	inspectFlags.Usage = func() {
		fmt.Printf("Usage: %s inspect [options] <credential.p12>\n\n", os.Args[0])
		fmt.Println("Summarize the certificate of a PKCS#12 credential as JSON")
		fmt.Println("\nOptions:")
		inspectFlags.PrintDefaults()
	}

	if err := inspectFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse inspect flags: %v", err)
		osExit(1)
		return
	}
	if len(inspectFlags.Args()) < 1 {
		inspectFlags.Usage()
		osExit(1)
		return
	}

	bundle, err := os.ReadFile(inspectFlags.Arg(0))
	if err != nil {
		log.Printf("Failed to read credential: %v", err)
		osExit(1)
		return
	}

	info, err := pdfseal.InspectCredential(bundle, *password)
	if err != nil {
		log.Printf("Failed to inspect credential: %v", err)
		osExit(1)
		return
	}
	printJSON(info)
}

func printJSON(v any) {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("Failed to encode result: %v", err)
		osExit(1)
		return
	}
	fmt.Println(string(encoded))
}
