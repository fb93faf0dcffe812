package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sundsvallskommun/api-service-digital-mail-sender-sub000/pkg/delivery"
)

func newSendCommand(root *rootOptions) *cobra.Command {
	var requests []string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send digital mail",
		Long: `Sends each request file to its recipient's mailbox. A request file is a
JSON document with recipientId, subject, supportInfo, body and attachments.`,
		Example: `  digitalmail send --request mail.json
  digitalmail send -r first.json -r second.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), root.configFile)
			if err != nil {
				return err
			}
			defer a.close()

			var failed int
			for _, path := range requests {
				req, err := readRequest(path)
				if err != nil {
					return err
				}
				resp, err := a.service.Send(cmd.Context(), req)
				if err != nil {
					failed++
					a.logger.Error("send failed", "request", path, "error", err)
					continue
				}
				if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d deliveries failed", failed, len(requests))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&requests, "request", "r", nil, "request JSON file (repeatable)")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}

func newReachableCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reachable <recipientId>...",
		Short: "Show which mailbox each recipient has",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), root.configFile)
			if err != nil {
				return err
			}
			defer a.close()

			results, err := a.service.Reachable(cmd.Context(), args)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), results)
		},
	}
}

func newSelfCheckCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "selfcheck",
		Short: "Build and verify a probe envelope with the configured key",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), root.configFile)
			if err != nil {
				return err
			}
			defer a.close()

			checkErr := a.service.SelfCheck()
			if err := writeJSON(cmd.OutOrStdout(), a.health.Snapshot()); err != nil {
				return err
			}
			return checkErr
		},
	}
}

type verifyResult struct {
	Valid            bool   `json:"valid"`
	SealCertificate  string `json:"sealCertificate,omitempty"`
	InnerCertificate string `json:"innerCertificate,omitempty"`
	InnerDigest      []byte `json:"innerDigest,omitempty"`
	Error            string `json:"error,omitempty"`
}

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify both signatures of a SealedDelivery document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			v, err := delivery.VerifySealedDelivery(b)
			if err != nil {
				_ = writeJSON(cmd.OutOrStdout(), verifyResult{Error: err.Error()})
				return err
			}
			return writeJSON(cmd.OutOrStdout(), verifyResult{
				Valid:            true,
				SealCertificate:  v.Seal.Certificate.Subject.String(),
				InnerCertificate: v.Inner.Certificate.Subject.String(),
				InnerDigest:      v.Inner.DigestValue,
			})
		},
	}
}

func readRequest(path string) (*delivery.Request, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading request: %w", err)
	}
	var req delivery.Request
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, fmt.Errorf("parsing request %s: %w", path, err)
	}
	return &req, nil
}

// readInput reads path, or stdin when path is "-"
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
