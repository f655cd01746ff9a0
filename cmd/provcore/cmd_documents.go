package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"provcore/pkg/domain"
)

var documentURL bool

// documentsCmd lists stored document digests
var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List the hashes of all documents in the blob store",
	Long: `Lists the digests of every document held in the configured blob
store. Each digest is the information hash recorded on the ledger for
the call that stored the document.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := openDocumentStore(cmd.Context())
		if err != nil {
			return err
		}
		hashes, err := docs.Hashes(cmd.Context())
		if err != nil {
			return err
		}
		for _, h := range hashes {
			fmt.Println(h)
		}
		return nil
	},
}

// documentCmd fetches a stored document
var documentCmd = &cobra.Command{
	Use:   "document [hash]",
	Short: "Fetch a document by its information hash",
	Long: `Fetches the document recorded under the given information hash and
writes it to stdout, after verifying its bytes still match the digest.
With --url, a time-limited download link is printed instead when the
backend supports one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := openDocumentStore(cmd.Context())
		if err != nil {
			return err
		}
		hash := domain.Hash(args[0])
		if documentURL {
			url, err := docs.DownloadURL(cmd.Context(), hash, 15*time.Minute)
			if err != nil {
				return err
			}
			fmt.Println(url)
			return nil
		}
		payload, err := docs.Get(cmd.Context(), hash)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(payload)
		return err
	},
}

func init() {
	documentCmd.Flags().BoolVar(&documentURL, "url", false, "print a time-limited download link instead of the content")
}
