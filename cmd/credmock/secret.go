package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/benaskins/credmock/internal/keychain"
)

// newMock builds a mock wired to the configured sinks, plus the store the
// command should drive (audited when an audit log is configured).
func newMock(tel *telemetry, status keychain.Status) (*keychain.MockStore, keychain.Store) {
	mock := keychain.NewMockStore(keychain.WithSink(tel.sink), keychain.WithFindStatus(status))
	return mock, tel.wrap(mock, "cli")
}

// commandStore returns the store a command drives: the platform store when
// --system is set, a fresh mock otherwise. mock is nil for the platform store.
func commandStore(cmd *cobra.Command, tel *telemetry, status keychain.Status) (mock *keychain.MockStore, store keychain.Store) {
	if system, _ := cmd.Flags().GetBool("system"); system {
		return nil, tel.wrap(keychain.NewSystemStore(tel.sink), "cli")
	}
	return newMock(tel, status)
}

var findCmd = &cobra.Command{
	Use:   "find <service> <account>",
	Short: "Look up a secret in a fresh mock",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := cfg.FindStatus
		if cmd.Flags().Changed("status") {
			raw, _ := cmd.Flags().GetString("status")
			s, err := keychain.ParseStatus(raw)
			if err != nil {
				return err
			}
			status = s
		}

		tel, err := newTelemetry(cfg)
		if err != nil {
			return err
		}
		defer tel.Close()

		_, store := commandStore(cmd, tel, status)
		data, err := store.FindSecret(args[0], args[1])
		if err != nil {
			st, _ := keychain.StatusOf(err)
			fmt.Printf("status %d (%s)\n", int32(st), st)
			tel.report()
			return err
		}
		fmt.Println(hex.EncodeToString(data))
		tel.report()
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <service> <account> [hex-secret]",
	Short: "Add a secret to a fresh mock",
	Long:  "Add a secret. If the secret is omitted, it is read from the terminal or stdin as raw bytes.",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := readSecret(args[2:])
		if err != nil {
			return err
		}
		if len(secret) == 0 {
			return errors.New("secret must not be empty")
		}

		tel, err := newTelemetry(cfg)
		if err != nil {
			return err
		}
		defer tel.Close()

		mock, store := commandStore(cmd, tel, cfg.FindStatus)
		if err := store.AddSecret(args[0], args[1], secret); err != nil {
			return err
		}
		if mock != nil {
			fmt.Printf("Secret %s/%s added (add_called=%t)\n", args[0], args[1], mock.AddCalled())
		} else {
			fmt.Printf("Secret %s/%s added\n", args[0], args[1])
		}
		tel.report()
		return nil
	},
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Print the mock encryption password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tel, err := newTelemetry(cfg)
		if err != nil {
			return err
		}
		defer tel.Close()

		_, store := commandStore(cmd, tel, cfg.FindStatus)
		fmt.Println(hex.EncodeToString(store.EncryptionPassword()))
		tel.report()
		return nil
	},
}

func readSecret(args []string) ([]byte, error) {
	if len(args) == 1 {
		b, err := hex.DecodeString(args[0])
		if err != nil {
			return nil, fmt.Errorf("secret must be hex: %w", err)
		}
		return b, nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print("Enter secret value: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		fmt.Println()
		return b, nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return []byte(strings.TrimRight(string(b), "\n")), nil
}

func init() {
	findCmd.Flags().String("status", "", "Status to return (integer, success, or item_not_found)")
	for _, c := range []*cobra.Command{findCmd, addCmd, passwordCmd} {
		c.Flags().Bool("system", false, "Use the platform credential store instead of a mock")
	}
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(passwordCmd)
}
