package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tailorcrm/tailorcrm/internal/crypto"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

const (
	backupPassphraseEnv = "TAILORCRM_BACKUP_PASSPHRASE"
	sqliteHeader        = "SQLite format 3\x00"
)

func newBackupCommand(deps commandDeps) *cobra.Command {
	var (
		outputPath string
		overwrite  bool
		passphrase string
	)
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a consistent copy of the database",
		Example: "  tailorcrm backup --output ./crm.backup.db\n" +
			"  tailorcrm backup --output ./crm.backup.enc --passphrase 'shop secret'\n" +
			"  TAILORCRM_BACKUP_PASSPHRASE='shop secret' tailorcrm backup --output ./crm.backup.enc --overwrite",
		Args: noArgs("backup"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outputPath) == "" {
				return usageErrorf("backup requires --output")
			}
			secret := resolveBackupPassphrase(passphrase)
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				encrypted := secret != ""
				var err error
				if encrypted {
					err = writeEncryptedBackup(ctx, env.store, outputPath, []byte(secret), overwrite, deps.now())
				} else {
					err = env.store.Backup(ctx, outputPath, overwrite)
				}
				if err != nil {
					return err
				}
				env.logger.Info("backup written", "output", outputPath, "encrypted", encrypted)
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"output_path": outputPath, "encrypted": encrypted})
				}
				return printDone(deps, "backup created: %s", outputPath)
			})
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "Backup output path")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite output path if it exists")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Encrypt the backup (or set "+backupPassphraseEnv+")")
	return cmd
}

func newRestoreCommand(deps commandDeps) *cobra.Command {
	var (
		fromPath   string
		overwrite  bool
		passphrase string
	)
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace the database with a backup",
		Example: "  tailorcrm restore --from ./crm.backup.db\n" +
			"  tailorcrm restore --from ./crm.backup.enc --passphrase 'shop secret' --overwrite",
		Args: noArgs("restore"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(fromPath) == "" {
				return usageErrorf("restore requires --from")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, commandTimeout(deps.globals))
			defer cancel()

			cfg, _, err := loadCommandConfig(deps.globals)
			if err != nil {
				return mapCommandError(err)
			}
			logger, closer, err := newCommandLogger(cfg, deps)
			if err != nil {
				return mapCommandError(err)
			}
			defer func() { _ = closer.Close() }()

			encrypted, err := restoreBackup(ctx, fromPath, cfg.Store.Path, []byte(resolveBackupPassphrase(passphrase)), overwrite)
			if err != nil {
				logger.Error("restore failed", "from", fromPath, "error", err)
				return mapCommandError(err)
			}
			logger.Info("database restored", "from", fromPath, "db_path", cfg.Store.Path, "encrypted", encrypted)

			if deps.globals.JSON {
				return printJSON(deps.out, map[string]any{
					"restored_from": fromPath,
					"db_path":       cfg.Store.Path,
					"encrypted":     encrypted,
				})
			}
			return printDone(deps, "restored database: %s from %s", cfg.Store.Path, fromPath)
		},
	}
	cmd.Flags().StringVar(&fromPath, "from", "", "Backup file to restore")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing database")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Passphrase for an encrypted backup (or set "+backupPassphraseEnv+")")
	return cmd
}

func resolveBackupPassphrase(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(backupPassphraseEnv)
}

func writeEncryptedBackup(ctx context.Context, store *storage.Store, dest string, passphrase []byte, overwrite bool, now time.Time) error {
	if err := checkDestination(dest, overwrite); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return fmt.Errorf("backup: create parent dir: %w", err)
	}
	scratch, err := os.MkdirTemp(filepath.Dir(dest), ".tailorcrm-backup-")
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	plainPath := filepath.Join(scratch, "crm.db")
	if err := store.Backup(ctx, plainPath, false); err != nil {
		return err
	}
	plain, err := os.ReadFile(plainPath)
	if err != nil {
		return fmt.Errorf("backup: read copy: %w", err)
	}
	sealed, err := crypto.Seal(passphrase, plain, crypto.DefaultArgon2Params(), now)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return writeFileReplacing(dest, sealed)
}

// restoreBackup reports whether the source was encrypted.
func restoreBackup(ctx context.Context, from, target string, passphrase []byte, overwrite bool) (bool, error) {
	if err := checkDestination(target, overwrite); err != nil {
		return false, fmt.Errorf("restore: %w", err)
	}
	data, err := os.ReadFile(from)
	if err != nil {
		return false, fmt.Errorf("restore: %w", err)
	}

	encrypted := crypto.IsEnvelope(data)
	if encrypted {
		if len(passphrase) == 0 {
			return true, usageErrorf("restore: %s is encrypted; pass --passphrase or set %s", from, backupPassphraseEnv)
		}
		if data, _, err = crypto.Open(passphrase, data); err != nil {
			return true, fmt.Errorf("restore: %w", err)
		}
	}
	if !bytes.HasPrefix(data, []byte(sqliteHeader)) {
		return encrypted, usageErrorf("restore: %s is not a tailorcrm backup", from)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return encrypted, fmt.Errorf("restore: create parent dir: %w", err)
	}
	staged := target + ".restore"
	removeDBFiles(staged)
	if err := os.WriteFile(staged, data, 0o600); err != nil {
		return encrypted, fmt.Errorf("restore: stage: %w", err)
	}
	if err := verifyStaged(ctx, staged); err != nil {
		removeDBFiles(staged)
		return encrypted, fmt.Errorf("restore: %w", err)
	}

	removeDBFiles(target)
	if err := os.Rename(staged, target); err != nil {
		return encrypted, fmt.Errorf("restore: %w", err)
	}
	return encrypted, nil
}

// verifyStaged opens the staged copy, which also migrates older schemas.
func verifyStaged(ctx context.Context, path string) error {
	store, err := storage.Open(path, storage.Options{MaxOpenConns: 1})
	if err != nil {
		return err
	}
	verifyErr := store.Verify(ctx)
	closeErr := store.Close()
	removeSidecars(path)
	return errors.Join(verifyErr, closeErr)
}

func checkDestination(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return fmt.Errorf("%s: %w", path, os.ErrExist)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func writeFileReplacing(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func removeDBFiles(path string) {
	_ = os.Remove(path)
	removeSidecars(path)
}

func removeSidecars(path string) {
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
}
