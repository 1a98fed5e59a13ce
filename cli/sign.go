package cli

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pdfseal/pdfseal"
	"github.com/pdfseal/pdfseal/config"
)

func SignCommand() {
	signFlags := flag.NewFlagSet("sign", flag.ExitOnError)

	var (
		p12Path  string
		password string
		noLTV    bool
	)
	// Flag defaults come from the config file when one exists.
	cfg := loadConfig()

	signFlags.StringVar(&p12Path, "p12", "", "Path to the PKCS#12 credential (required)")
	signFlags.StringVar(&password, "password", "", "Password of the PKCS#12 credential")
	signFlags.StringVar(&cfg.Name, "name", cfg.Name, "Name of the signatory")
	signFlags.StringVar(&cfg.Location, "location", cfg.Location, "Location of the signatory")
	signFlags.StringVar(&cfg.Reason, "reason", cfg.Reason, "Reason for signing")
	signFlags.StringVar(&cfg.ContactInfo, "contact", cfg.ContactInfo, "Contact information of the signatory")
	signFlags.StringVar(&cfg.TSA.URL, "tsa", cfg.TSA.URL, "URL of the Time-Stamp Authority (empty skips timestamping)")
	signFlags.StringVar(&cfg.TSA.FallbackURL, "tsa-fallback", cfg.TSA.FallbackURL, "Fallback Time-Stamp Authority URL")
	signFlags.StringVar(&cfg.TSA.Username, "tsa-user", cfg.TSA.Username, "Time-Stamp Authority basic auth user")
	signFlags.StringVar(&cfg.TSA.Password, "tsa-pass", cfg.TSA.Password, "Time-Stamp Authority basic auth password")
	capacity := signFlags.Uint("capacity", uint(cfg.Capacity), "Reserved signature slot size in bytes (0 derives it from the credential)")
	signFlags.BoolVar(&noLTV, "no-ltv", false, "Skip embedding long-term validation material")

	signFlags.Usage = func() {
		fmt.Printf("Usage: %s sign [options] <input.pdf> <output.pdf>\n\n", os.Args[0])
		fmt.Println("Sign a PDF file with a digital signature")
		fmt.Println("\nOptions:")
		signFlags.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Printf("  %s sign -p12 credential.p12 -password secret input.pdf output.pdf\n", os.Args[0])
		fmt.Printf("  %s sign -p12 credential.p12 -tsa https://freetsa.org/tsr input.pdf output.pdf\n", os.Args[0])
	}

	if err := signFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse sign flags: %v", err)
		osExit(1)
		return
	}
	if len(signFlags.Args()) < 2 || p12Path == "" {
		signFlags.Usage()
		osExit(1)
		return
	}

	input, err := os.ReadFile(signFlags.Arg(0))
	if err != nil {
		log.Printf("Failed to read input: %v", err)
		osExit(1)
		return
	}
	bundle, err := os.ReadFile(p12Path)
	if err != nil {
		log.Printf("Failed to read credential: %v", err)
		osExit(1)
		return
	}

	var pipeline pdfseal.Pipeline
	result, err := pipeline.Sign(context.Background(), pdfseal.SignRequest{
		PDF:         input,
		P12:         bundle,
		Password:    password,
		Name:        cfg.Name,
		Reason:      cfg.Reason,
		Location:    cfg.Location,
		ContactInfo: cfg.ContactInfo,
		Capacity:    uint32(*capacity),
		TSA:         cfg.TSA,
		OCSP:        cfg.OCSP,
		DisableLTV:  noLTV,
	})
	if err != nil {
		log.Printf("Failed to sign: %v", err)
		osExit(1)
		return
	}

	for _, warning := range result.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", warning)
	}

	if err := os.WriteFile(signFlags.Arg(1), result.PDF, 0o644); err != nil {
		log.Printf("Failed to write output: %v", err)
		osExit(1)
		return
	}
	fmt.Println("Signed", signFlags.Arg(0))
}

// loadConfig reads the config file at its default location when one
// exists; otherwise the built-in defaults apply.
func loadConfig() *config.Config {
	cfg := config.Default()
	if _, err := os.Stat(config.DefaultLocation); err == nil {
		loaded, err := config.Read(config.DefaultLocation)
		if err != nil {
			log.Printf("Ignoring config file: %v", err)
		} else {
			cfg = loaded
		}
	}
	return &cfg
}
