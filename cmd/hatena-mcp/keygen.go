package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/go-training/hatena-mcp/pkg/token"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key pair and client credentials in .env format",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return keygen(cmd.OutOrStdout())
		},
	}
}

func keygen(w io.Writer) error {
	sk, err := token.GenerateSigningKey()
	if err != nil {
		return err
	}
	private, err := sk.MarshalJWK()
	if err != nil {
		return err
	}
	public, err := sk.Public().MarshalJWK()
	if err != nil {
		return err
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "JWT_PRIVATE_KEY='%s'\nJWT_PUBLIC_KEY='%s'\nOAUTH_CLIENT_ID=%s\nOAUTH_CLIENT_SECRET=%s\n",
		private, public, uuid.New().String(), base64.RawURLEncoding.EncodeToString(secret))
	return err
}
