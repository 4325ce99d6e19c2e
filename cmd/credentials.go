package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meridian-data/catalogd/pkg/models"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage stored source database credentials",
}

var credAddFlags struct {
	connection  string
	host        string
	port        int
	database    string
	user        string
	password    string
	sslMode     string
	description string
}

var credentialsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Store or update a source credential (password encrypted at rest)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		ctx := cmd.Context()
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		creds, err := credentialService(db, cfg, logger)
		if err != nil {
			return err
		}

		cred := &models.Credential{
			ConnectionID: credAddFlags.connection,
			Host:         credAddFlags.host,
			Port:         credAddFlags.port,
			DatabaseName: credAddFlags.database,
			Username:     credAddFlags.user,
			Password:     credAddFlags.password,
			SSLMode:      credAddFlags.sslMode,
		}
		if credAddFlags.description != "" {
			cred.Description = &credAddFlags.description
		}

		if err := creds.Store(ctx, cred); err != nil {
			return err
		}

		fmt.Printf("Stored credential %q (%s@%s:%d/%s)\n",
			cred.ConnectionID, cred.Username, cred.Host, cred.Port, cred.DatabaseName)
		return nil
	},
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		ctx := cmd.Context()
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		creds, err := credentialService(db, cfg, logger)
		if err != nil {
			return err
		}

		list, err := creds.List(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CONNECTION\tHOST\tPORT\tDATABASE\tUSER\tACTIVE")
		for _, c := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%t\n",
				c.ConnectionID, c.Host, c.Port, c.DatabaseName, c.Username, c.IsActive)
		}
		return w.Flush()
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <connection>",
	Short: "Delete a stored credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		ctx := cmd.Context()
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		creds, err := credentialService(db, cfg, logger)
		if err != nil {
			return err
		}

		if err := creds.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted credential %q\n", args[0])
		return nil
	},
}

func init() {
	credentialsAddCmd.Flags().StringVar(&credAddFlags.connection, "connection", "", "connection name (required)")
	credentialsAddCmd.Flags().StringVar(&credAddFlags.host, "host", "localhost", "source database host")
	credentialsAddCmd.Flags().IntVar(&credAddFlags.port, "port", 5432, "source database port")
	credentialsAddCmd.Flags().StringVar(&credAddFlags.database, "database", "", "source database name (required)")
	credentialsAddCmd.Flags().StringVar(&credAddFlags.user, "user", "", "source database user (required)")
	credentialsAddCmd.Flags().StringVar(&credAddFlags.password, "password", "", "source database password")
	credentialsAddCmd.Flags().StringVar(&credAddFlags.sslMode, "ssl-mode", "prefer", "source ssl mode")
	credentialsAddCmd.Flags().StringVar(&credAddFlags.description, "description", "", "optional description")
	_ = credentialsAddCmd.MarkFlagRequired("connection")
	_ = credentialsAddCmd.MarkFlagRequired("database")
	_ = credentialsAddCmd.MarkFlagRequired("user")

	credentialsCmd.AddCommand(credentialsAddCmd)
	credentialsCmd.AddCommand(credentialsListCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
	rootCmd.AddCommand(credentialsCmd)
}
