package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"provcore/pkg/domain"
)

var (
	requestInfoFile string
	requestInfoHash string
)

// submitRequestCmd applies for the manager role
var submitRequestCmd = &cobra.Command{
	Use:   "submit-request",
	Short: "Apply for the manager role",
	Long: `Submits a manager admission request for --caller. The request cites
an information document, supplied either as a file (stored in the blob
store, recorded by digest) or as a precomputed hash.

A caller may apply once; the administrator approves or denies the request
with approve-request / deny-request.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if caller == "" {
			return fmt.Errorf("--caller is required")
		}
		hash, err := resolveInformationHash(cmd.Context(), requestInfoFile, requestInfoHash)
		if err != nil {
			return err
		}
		svc, err := openService()
		if err != nil {
			return err
		}
		req, _, err := svc.SubmitManagerRequest(cmd.Context(), domain.Identity(caller), domain.Hash(hash))
		if err != nil {
			return err
		}
		return printJSON(req)
	},
}

// approveRequestCmd approves a pending admission request
var approveRequestCmd = &cobra.Command{
	Use:   "approve-request [requester]",
	Short: "Approve a manager admission request (administrator only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		req, _, err := svc.ApproveManagerRequest(cmd.Context(), domain.Identity(caller), domain.Identity(args[0]))
		if err != nil {
			return err
		}
		return printJSON(req)
	},
}

// denyRequestCmd denies a pending admission request
var denyRequestCmd = &cobra.Command{
	Use:   "deny-request [requester]",
	Short: "Deny a manager admission request (administrator only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		req, _, err := svc.DenyManagerRequest(cmd.Context(), domain.Identity(caller), domain.Identity(args[0]))
		if err != nil {
			return err
		}
		return printJSON(req)
	},
}

// getRequestCmd shows one admission request
var getRequestCmd = &cobra.Command{
	Use:   "request [requester]",
	Short: "Show a manager admission request (administrator only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		req, err := svc.GetManagerRequest(cmd.Context(), domain.Identity(caller), domain.Identity(args[0]))
		if err != nil {
			return err
		}
		return printJSON(req)
	},
}

// pendingRequestsCmd lists identities with pending requests
var pendingRequestsCmd = &cobra.Command{
	Use:   "pending-requests",
	Short: "List identities with a pending admission request (administrator only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		ids, err := svc.PendingManagerRequests(cmd.Context(), domain.Identity(caller))
		if err != nil {
			return err
		}
		return printJSON(ids)
	},
}

// approvedRequestsCmd lists identities with approved requests
var approvedRequestsCmd = &cobra.Command{
	Use:   "approved-requests",
	Short: "List identities with an approved admission request (administrator only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		ids, err := svc.ApprovedManagerRequests(cmd.Context(), domain.Identity(caller))
		if err != nil {
			return err
		}
		return printJSON(ids)
	},
}

func init() {
	submitRequestCmd.Flags().StringVar(&requestInfoFile, "info-file", "", "document to store and cite by digest")
	submitRequestCmd.Flags().StringVar(&requestInfoHash, "info-hash", "", "precomputed information hash")
}
