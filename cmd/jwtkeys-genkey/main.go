// Command jwtkeys-genkey generates a signing keypair and prints both
// halves as JWKs: the private key (to configure a token issuer with)
// and the public key (to publish at a JWKS endpoint). It supports RSA,
// RSA-PSS, EC on P-256/P-384/P-521, and Ed25519, selected with
// --alg.
package main

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/spf13/cobra"
)

var (
	alg      string
	kid      string
	rsaBits  int
	savePath string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jwtkeys-genkey",
		Short: "Generate a JWK signing keypair",
		RunE:  runGenkey,
	}

	cmd.Flags().StringVar(&alg, "alg", "ES256", "signature algorithm: RS256, RS384, RS512, PS256, PS384, PS512, ES256, ES384, ES512, EdDSA")
	cmd.Flags().StringVar(&kid, "kid", "", "key ID to embed (a random UUID is generated if empty)")
	cmd.Flags().IntVar(&rsaBits, "rsa-bits", 2048, "RSA modulus size in bits, for RSA/PSS algorithms")
	cmd.Flags().StringVar(&savePath, "save", "", "write the private JWK to this file (0600) instead of only printing it")

	return cmd
}

func runGenkey(cmd *cobra.Command, args []string) error {
	if kid == "" {
		kid = uuid.NewString()
	}

	priv, err := generateKey(alg, rsaBits)
	if err != nil {
		return err
	}

	privateJWK, err := jwk.FromRaw(priv)
	if err != nil {
		return fmt.Errorf("failed to build JWK from private key: %w", err)
	}
	if err := setKeyMeta(privateJWK, kid, alg); err != nil {
		return err
	}

	publicJWK, err := privateJWK.PublicKey()
	if err != nil {
		return fmt.Errorf("failed to derive public JWK: %w", err)
	}

	privateJSON, err := json.MarshalIndent(privateJWK, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal private JWK: %w", err)
	}
	publicJSON, err := json.MarshalIndent(publicJWK, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal public JWK: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Private JWK (keep secret, configure your issuer with it):\n%s\n\n", privateJSON)
	fmt.Fprintf(out, "Public JWK (publish this at your JWKS endpoint):\n%s\n", publicJSON)

	if savePath != "" {
		if err := os.WriteFile(savePath, privateJSON, 0600); err != nil {
			return fmt.Errorf("failed to write private key file: %w", err)
		}
		fmt.Fprintf(out, "\nPrivate key saved to %s\n", savePath)
	}

	return nil
}

// generateKey produces the raw crypto key for alg, following the same
// switch-on-alg dispatch shape sigverify uses for verification.
func generateKey(alg string, rsaBits int) (any, error) {
	switch alg {
	case "RS256", "RS384", "RS512", "PS256", "PS384", "PS512":
		return rsa.GenerateKey(rand.Reader, rsaBits)
	case "ES256":
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "ES384":
		return ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case "ES512":
		return ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	case "EdDSA":
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		return priv, err
	default:
		return nil, fmt.Errorf("unsupported --alg %q", alg)
	}
}

func setKeyMeta(key jwk.Key, kid, alg string) error {
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return fmt.Errorf("failed to set kid: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, alg); err != nil {
		return fmt.Errorf("failed to set alg: %w", err)
	}
	if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return fmt.Errorf("failed to set use: %w", err)
	}
	return nil
}
