package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"provcore/internal/blob"
	"provcore/internal/core"
)

var (
	// Global flags
	caller  string
	verbose bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "provcore",
	Short: "provcore - permissioned supply chain provenance ledger",
	Long: `provcore maintains a permissioned product provenance registry: a
manager admission workflow gated by a single administrator, a product
ledger whose parent links form an acyclic lineage graph, and an
append-only operation history per product.

Storage backend and administrator identity are configured through
PROVCORE_STORAGE_DRIVER (sqlite by default), PROVCORE_SQLITE_PATH,
PROVCORE_POSTGRES_DSN and PROVCORE_ADMIN. Off-ledger documents go to the
blob store selected by PROVCORE_BLOB_DRIVER.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// openService builds the service over the environment-selected backend. The
// CLI defaults to sqlite so successive invocations share one ledger; the
// in-memory store stays available via PROVCORE_STORAGE_DRIVER=memory.
func openService() (*core.Service, error) {
	driver := core.StorageDriverFromEnv(core.StorageDriverSQLite)
	store, err := core.OpenPersistentStore(driver, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return core.NewService(store, core.WithLogger(core.NewZapLogger(logger))), nil
}

// openDocumentStore builds the content-addressed document store used to
// resolve --info-file flags into ledger hashes.
func openDocumentStore(ctx context.Context) (*blob.DocumentStore, error) {
	store, err := blob.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return blob.NewDocumentStore(store), nil
}

// resolveInformationHash turns the --info-file / --info-hash flag pair into
// the hash recorded on the ledger. A file is stored in the document store
// first so the hash always cites retrievable content.
func resolveInformationHash(ctx context.Context, infoFile, infoHash string) (string, error) {
	if infoFile != "" && infoHash != "" {
		return "", fmt.Errorf("--info-file and --info-hash are mutually exclusive")
	}
	if infoFile == "" {
		if infoHash == "" {
			return "", fmt.Errorf("one of --info-file or --info-hash is required")
		}
		return infoHash, nil
	}
	payload, err := os.ReadFile(infoFile)
	if err != nil {
		return "", err
	}
	docs, err := openDocumentStore(ctx)
	if err != nil {
		return "", err
	}
	hash, err := docs.Put(ctx, payload, blob.PutOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	return string(hash), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&caller, "caller", "", "identity performing the call")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		submitRequestCmd,
		approveRequestCmd,
		denyRequestCmd,
		getRequestCmd,
		pendingRequestsCmd,
		approvedRequestsCmd,
		mintUIDCmd,
		createProductCmd,
		addOperationCmd,
		addManagerCmd,
		renounceCmd,
		getProductCmd,
		listProductsCmd,
		eventsCmd,
		documentsCmd,
		documentCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
