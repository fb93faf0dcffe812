// Command digitalmail sends digital mail to secure mailboxes and checks
// which mailbox a recipient has.
//
//	digitalmail --config config.yaml reachable 197001011234
//	digitalmail --config config.yaml send --request mail.json
//	digitalmail verify sealed.xml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "digitalmail",
		Short: "Secure digital mail sender",
		Long: `Builds double-signed SealedDelivery envelopes and delivers them to the
recipients' government registered secure mailboxes.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "config.yaml", "configuration file")

	cmd.AddCommand(
		newSendCommand(opts),
		newReachableCommand(opts),
		newSelfCheckCommand(opts),
		newVerifyCommand(),
	)
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
