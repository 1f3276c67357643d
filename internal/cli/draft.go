package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/garyjia/backoffice-wizard/internal/application/port"
	"github.com/garyjia/backoffice-wizard/internal/config"
	"github.com/garyjia/backoffice-wizard/internal/container"
	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
	"github.com/garyjia/backoffice-wizard/internal/wizard"
	"github.com/garyjia/backoffice-wizard/pkg/database"
)

var draftOwner string

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Inspect or clear a saved draft",
}

var draftShowCmd = &cobra.Command{
	Use:   "show <flow>",
	Short: "Print the saved draft of a flow for --owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, key, closeFn, err := openDraftScope(args[0])
		if err != nil {
			return err
		}
		defer closeFn()

		data, err := store.Get(contextOrBackground(cmd), key)
		if errors.Is(err, port.ErrNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "no %s draft for %s\n", args[0], draftOwner)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read draft: %w", err)
		}
		return writePretty(cmd.OutOrStdout(), data)
	},
}

var draftClearCmd = &cobra.Command{
	Use:   "clear <flow>",
	Short: "Delete the saved draft of a flow for --owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, key, closeFn, err := openDraftScope(args[0])
		if err != nil {
			return err
		}
		defer closeFn()

		if err := store.Delete(contextOrBackground(cmd), key); err != nil {
			return fmt.Errorf("failed to clear draft: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %s draft for %s\n", args[0], draftOwner)
		return nil
	},
}

func init() {
	draftCmd.PersistentFlags().StringVar(&draftOwner, "owner", "anonymous", "draft owner id")
	draftCmd.AddCommand(draftShowCmd)
	draftCmd.AddCommand(draftClearCmd)
}

func writePretty(w io.Writer, data []byte) error {
	_, err := w.Write(pretty.Pretty(data))
	return err
}

// draftKey maps a flow name onto its storage key
func draftKey(flowName string) (string, error) {
	for _, f := range container.ProvideFlows(entity.DefaultRoster(), wizard.DefaultUploadPolicy()) {
		if f.Name == flowName {
			return f.DraftKey, nil
		}
	}
	return "", fmt.Errorf("unknown flow: %s", flowName)
}

// openDraftScope opens the configured draft backend scoped to --owner
func openDraftScope(flowName string) (port.DraftStore, string, func(), error) {
	key, err := draftKey(flowName)
	if err != nil {
		return nil, "", nil, err
	}

	cfg, logger, err := loadRuntime()
	if err != nil {
		return nil, "", nil, err
	}

	var conn *database.DB
	closeFn := func() {
		if conn != nil {
			_ = conn.Close()
		}
		_ = logger.Sync()
	}

	if cfg.Drafts.Backend == config.DraftBackendFile {
		provider, err := container.ProvideDraftStore(&cfg.Drafts, nil, logger)
		if err != nil {
			closeFn()
			return nil, "", nil, err
		}
		return provider.Scope(draftOwner), key, closeFn, nil
	}

	bundle, err := container.ProvideDatabase(&cfg.Database, logger)
	if err != nil {
		closeFn()
		return nil, "", nil, err
	}
	conn = bundle.Conn

	provider, err := container.ProvideDraftStore(&cfg.Drafts, bundle.DB, logger)
	if err != nil {
		closeFn()
		return nil, "", nil, err
	}
	return provider.Scope(draftOwner), key, closeFn, nil
}
