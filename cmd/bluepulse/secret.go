package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bluepulse/internal/infra/config"
)

const configKeyEnv = "BLUEPULSE_CONFIG_KEY"

func newEncryptSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt-secret VALUE",
		Short: "Encrypt a value for use as an enc: config secret",
		Long: "Encrypts VALUE with the passphrase in " + configKeyEnv + " and prints a value\n" +
			"that can be pasted into llm.providers[].api_key.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := encryptSecret(args[0], os.Getenv(configKeyEnv))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func encryptSecret(value, passphrase string) (string, error) {
	if passphrase == "" {
		return "", errors.New(configKeyEnv + " is not set")
	}
	enc, err := config.EncryptValue(value, passphrase)
	if err != nil {
		return "", err
	}
	return "enc:" + enc, nil
}
