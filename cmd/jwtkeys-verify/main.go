// Command jwtkeys-verify verifies a single JWT against an issuer's
// JWKS endpoint and prints the decoded payload to stdout, or the
// verification error to stderr. Flags default from the environment, optionally
// loaded from a .env file, so the command works well in scripts and
// CI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"jwtkeys"
)

var (
	issuer       string
	jwksURI      string
	audience     []string
	scope        []string
	graceSeconds int64
)

func main() {
	// Loaded before flag defaults are read so ISSUER/JWKS_URI from a
	// .env file take effect the same as a real exported env var. A
	// --env-file override, if present, is scanned for ahead of the
	// full cobra parse since flag values aren't available yet.
	_ = godotenv.Load(envFileFromArgs(os.Args[1:])...)

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// envFileFromArgs looks for a "--env-file=path" or "--env-file path"
// argument so it can be loaded before cobra's own flag parsing runs.
// Returns nil (godotenv's own default search path) when absent.
func envFileFromArgs(args []string) []string {
	for i, a := range args {
		if path, ok := strings.CutPrefix(a, "--env-file="); ok {
			return []string{path}
		}
		if a == "--env-file" && i+1 < len(args) {
			return []string{args[i+1]}
		}
	}
	return nil
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jwtkeys-verify <jwt>",
		Short: "Verify a JWT against an issuer's JWKS endpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerify,
	}

	cmd.Flags().String("env-file", "", "optional .env file to load ISSUER/JWKS_URI defaults from")
	cmd.Flags().StringVar(&issuer, "issuer", os.Getenv("ISSUER"), "expected issuer (also used to derive the JWKS endpoint)")
	cmd.Flags().StringVar(&jwksURI, "jwks-uri", os.Getenv("JWKS_URI"), "override the derived JWKS endpoint")
	cmd.Flags().StringSliceVar(&audience, "audience", nil, "acceptable audience values")
	cmd.Flags().StringSliceVar(&scope, "scope", nil, "acceptable scopes")
	cmd.Flags().Int64Var(&graceSeconds, "grace-seconds", 0, "clock-skew tolerance for exp/nbf")

	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	if issuer == "" {
		return fmt.Errorf("--issuer (or ISSUER) is required")
	}

	v := jwtkeys.New(jwtkeys.Config{
		Issuer:       issuer,
		JWKSURI:      jwksURI,
		Audience:     audience,
		Scope:        scope,
		GraceSeconds: graceSeconds,
	})

	payload, err := v.Verify(context.Background(), args[0], nil)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
