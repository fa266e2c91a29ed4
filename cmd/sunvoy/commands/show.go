package commands

import (
	"fmt"
	"io"
	"os"
	"sunvoy-scraper/internal/sunvoy"
	"sunvoy-scraper/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var showFile *string

func init() {
	showFile = showCmd.Flags().String("file", "", "The users file to show, defaults to output_file from the config.")
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show [--file <path/to/users.json>]",
	Short: "Prints the users saved by the last sync as a table.",
	Run: func(cmd *cobra.Command, args []string) {
		path := *showFile
		if path == "" {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				serviceutil.Fatal("failed to read config", err)
			}
			path = cfg.OutputFile
		}

		contents, err := os.ReadFile(path)
		if err != nil {
			serviceutil.Fatal("failed to read users file", err)
		}
		users, err := sunvoy.DecodeUsers(contents)
		if err != nil {
			serviceutil.Fatal(fmt.Sprintf("invalid users file %s", path), err)
		}

		renderUsers(cmd.OutOrStdout(), users)
	},
}

func renderUsers(w io.Writer, users []sunvoy.User) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)

	t.AppendHeader(table.Row{"#", "Id", "Name", "Email", "Role"})
	for i, u := range users {
		t.AppendRow(table.Row{i + 1, u.ID().String(), u.Name(), u.Email(), u.Role()})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(users)})

	t.Render()
}
