package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tlanglois/sillon/internal/config"
	"github.com/tlanglois/sillon/internal/scrobble"
)

var lastfmAuthCmd = &cobra.Command{
	Use:   "lastfm-auth",
	Short: "Authorize sillon with your Last.fm account",
	Long: `Runs the Last.fm desktop authorization flow and prints the session
key to store under [lastfm] in the config file. Requires api_key and
api_secret to be configured already.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Lastfm.APIKey == "" || cfg.Lastfm.APISecret == "" {
			return fmt.Errorf("set lastfm.api_key and lastfm.api_secret in the config file first")
		}

		client := scrobble.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret, "")
		token, err := client.GetToken()
		if err != nil {
			return err
		}

		url := client.AuthURL(token)
		fmt.Println("Authorize sillon in your browser:")
		fmt.Println("  " + url)
		if err := scrobble.OpenBrowser(url); err != nil {
			fmt.Println("(could not open the browser automatically)")
		}

		fmt.Print("Press Enter once you have authorized... ")
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')

		sessionKey, err := client.GetSession(token)
		if err != nil {
			return err
		}

		fmt.Println("Authorized. Add this to your config file:")
		fmt.Println()
		fmt.Println("  [lastfm]")
		fmt.Printf("  session_key = %q\n", sessionKey)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lastfmAuthCmd)
}
