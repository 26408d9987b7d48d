package cli

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/keystore"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage per-user provider API keys",
	}

	cmd.AddCommand(newKeysSetCmd())
	cmd.AddCommand(newKeysListCmd())
	cmd.AddCommand(newKeysDeleteCmd())

	return cmd
}

func newKeysSetCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "set <provider>",
		Short: "Store an API key for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := readSecret(fmt.Sprintf("API key for %s: ", args[0]))
			if err != nil {
				return err
			}
			if key == "" {
				return fmt.Errorf("empty key")
			}

			keys := keystore.New(paths.Keys, log)
			if err := keys.Set(user, args[0], key); err != nil {
				return err
			}

			fmt.Printf("Stored %s key for user %s (%s)\n",
				args[0], user, keys.MaskedKeys(user)[args[0]])
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "local", "user the key belongs to")
	return cmd
}

func newKeysListCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored keys, masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := keystore.New(paths.Keys, log)
			masked := keys.MaskedKeys(user)
			if len(masked) == 0 {
				fmt.Printf("no keys stored for user %s\n", user)
				return nil
			}

			providers := make([]string, 0, len(masked))
			for p := range masked {
				providers = append(providers, p)
			}
			sort.Strings(providers)

			for _, p := range providers {
				fmt.Printf("  %-12s %s\n", p, masked[p])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "local", "user to list keys for")
	return cmd
}

func newKeysDeleteCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove a stored API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := keystore.New(paths.Keys, log)
			if err := keys.Delete(user, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s key for user %s\n", args[0], user)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "local", "user the key belongs to")
	return cmd
}

// readSecret reads a key without echoing when stdin is a terminal, and falls
// back to a plain line read when input is piped.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
