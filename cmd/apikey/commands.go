package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/kiranshivaraju/scribe/internal/api/middleware"
	"github.com/kiranshivaraju/scribe/internal/store"
	"github.com/kiranshivaraju/scribe/pkg/models"
)

const keyPrefix = "sc_"

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var owner, name string
	var scopes []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a new API key and print it once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(owner) == "" {
				return errors.New("--owner is required")
			}
			st, err := ctx.ensureStore(cmd.Context())
			if err != nil {
				return err
			}

			raw, err := generateKey()
			if err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash key: %w", err)
			}

			now := time.Now().UTC()
			key := &models.APIKey{
				ID:        uuid.New(),
				OwnerID:   owner,
				Name:      name,
				KeyHash:   string(hash),
				KeyPrefix: raw[:mw.KeyPrefixLen],
				Scopes:    scopes,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := st.CreateAPIKey(cmd.Context(), key); err != nil {
				return fmt.Errorf("store key: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:     %s\n", key.ID)
			fmt.Fprintf(out, "owner:  %s\n", key.OwnerID)
			fmt.Fprintf(out, "key:    %s\n", raw)
			fmt.Fprintln(out, "Store this key now; it cannot be shown again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable label")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scope granted to the key (repeatable)")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active keys for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore(cmd.Context())
			if err != nil {
				return err
			}
			keys, err := st.ListAPIKeys(cmd.Context(), owner)
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No keys found")
				return nil
			}

			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{
					k.ID.String(), k.KeyPrefix, dash(k.Name), dash(strings.Join(k.Scopes, ",")),
					formatOptionalTime(k.LastUsedAt), k.CreatedAt.Format(time.RFC3339),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "Prefix", "Name", "Scopes", "Last used", "Created"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner whose keys to list")
	return cmd
}

func newRevokeCommand(ctx *commandContext) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid key id %q: %w", args[0], err)
			}
			st, err := ctx.ensureStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := st.RevokeAPIKey(cmd.Context(), id, owner); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no active key %s for owner %q", id, owner)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner of the key")
	return cmd
}

// generateKey returns "sc_" followed by 48 hex characters.
func generateKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return keyPrefix + hex.EncodeToString(buf), nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
