package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"provcore/pkg/domain"
)

var (
	productInfoFile string
	productInfoHash string
	productParents  []string

	operationInfoFile string
	operationInfoHash string
)

// mintUIDCmd mints a fresh product identifier
var mintUIDCmd = &cobra.Command{
	Use:   "mint-uid",
	Short: "Mint a fresh product uid (managers only)",
	Long: `Generates a product identifier scoped to --caller. Minting does not
register anything; pass the uid to create-product to register the
product.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		uid, _, err := svc.GenerateProductUID(cmd.Context(), domain.Identity(caller))
		if err != nil {
			return err
		}
		fmt.Println(uid)
		return nil
	},
}

// createProductCmd registers a product
var createProductCmd = &cobra.Command{
	Use:   "create-product [uid]",
	Short: "Register a product under a minted uid (managers only)",
	Long: `Registers a product with --caller as its sole manager. Parents given
via --parent must already exist on the ledger, so lineage links always
point backward in time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := resolveInformationHash(cmd.Context(), productInfoFile, productInfoHash)
		if err != nil {
			return err
		}
		svc, err := openService()
		if err != nil {
			return err
		}
		parents := make([]domain.UID, 0, len(productParents))
		for _, p := range productParents {
			parents = append(parents, domain.UID(p))
		}
		product, _, err := svc.CreateProduct(cmd.Context(), domain.Identity(caller), domain.UID(args[0]), domain.Hash(hash), parents)
		if err != nil {
			return err
		}
		return printJSON(product)
	},
}

// addOperationCmd appends a history entry
var addOperationCmd = &cobra.Command{
	Use:   "add-operation [uid]",
	Short: "Append an operation to a product's history (product managers only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := resolveInformationHash(cmd.Context(), operationInfoFile, operationInfoHash)
		if err != nil {
			return err
		}
		svc, err := openService()
		if err != nil {
			return err
		}
		op, _, err := svc.AddOperation(cmd.Context(), domain.Identity(caller), domain.UID(args[0]), domain.Hash(hash))
		if err != nil {
			return err
		}
		return printJSON(op)
	},
}

// addManagerCmd shares product management
var addManagerCmd = &cobra.Command{
	Use:   "add-manager [uid] [identity]",
	Short: "Add a co-manager to a product (product managers only)",
	Long: `Adds identity to the product's manager set. The identity must
already hold the global manager role.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		if _, err := svc.AddManagerForProduct(cmd.Context(), domain.Identity(caller), domain.UID(args[0]), domain.Identity(args[1])); err != nil {
			return err
		}
		return nil
	},
}

// renounceCmd gives up management of a product
var renounceCmd = &cobra.Command{
	Use:   "renounce [uid]",
	Short: "Renounce management of a product",
	Long: `Removes --caller from the product's manager set. Renouncing as the
last manager freezes the product until a manager is added again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		res, err := svc.RenounceRoleForProduct(cmd.Context(), domain.Identity(caller), domain.UID(args[0]))
		if err != nil {
			return err
		}
		for _, v := range res.Violations {
			fmt.Printf("warning: %s\n", v.Message)
		}
		return nil
	},
}

// getProductCmd shows a product and its history
var getProductCmd = &cobra.Command{
	Use:   "product [uid]",
	Short: "Show a product and its operation history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		product, ops, err := svc.GetProduct(cmd.Context(), domain.UID(args[0]))
		if err != nil {
			return err
		}
		return printJSON(struct {
			Product    domain.Product     `json:"product"`
			Operations []domain.Operation `json:"operations"`
		}{product, ops})
	},
}

// listProductsCmd lists the caller's products
var listProductsCmd = &cobra.Command{
	Use:   "products",
	Short: "List uids managed by --caller (managers only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		uids, err := svc.ManagerProducts(cmd.Context(), domain.Identity(caller))
		if err != nil {
			return err
		}
		return printJSON(uids)
	},
}

// eventsCmd dumps the event journal
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Dump the committed ledger event journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		return printJSON(svc.Events(cmd.Context()))
	},
}

func init() {
	createProductCmd.Flags().StringVar(&productInfoFile, "info-file", "", "document to store and cite by digest")
	createProductCmd.Flags().StringVar(&productInfoHash, "info-hash", "", "precomputed information hash")
	createProductCmd.Flags().StringArrayVar(&productParents, "parent", nil, "parent product uid (repeatable)")

	addOperationCmd.Flags().StringVar(&operationInfoFile, "info-file", "", "document to store and cite by digest")
	addOperationCmd.Flags().StringVar(&operationInfoHash, "info-hash", "", "precomputed information hash")
}
