// Package cli implements the pdfseal command line interface.
package cli

import (
	"fmt"
	"os"
)

// osExit is swapped out by the tests.
var osExit = os.Exit

func Usage() {
	fmt.Printf("Usage: %s <command> [options] <args>\n\n", os.Args[0])
	fmt.Println("Commands:")
	fmt.Println("  sign     Sign a PDF file with a PKCS#12 credential")
	fmt.Println("  detect   Report signature and LTV markers of a PDF file")
	fmt.Println("  inspect  Summarize the certificate of a PKCS#12 credential")
	fmt.Println("  verify   Verify the signatures of a PDF file")
	fmt.Println("")
	fmt.Printf("Use '%s <command> -h' for command-specific help\n", os.Args[0])
	osExit(1)
}

// Run dispatches to the subcommand named by the first argument.
func Run() {
	if len(os.Args) < 2 {
		Usage()
		return
	}

	switch os.Args[1] {
	case "sign":
		SignCommand()
	case "detect":
		DetectCommand()
	case "inspect":
		InspectCommand()
	case "verify":
		VerifyCommand()
	default:
		Usage()
	}
}
