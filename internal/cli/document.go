package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hmdoc/internal/app"
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(publishCmd)

	exportCmd.Flags().Bool("to-file", false, "write to <data_dir>/exports/<id>.json and print the path")
	publishCmd.Flags().StringSliceP("target", "t", nil, "publish only to these targets (repeatable)")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, func(ctx context.Context, a *app.App) error {
			docs, err := a.Documents().ListDocuments()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, d := range docs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID, d.Title, d.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <document.json>...",
	Short: "Import document files; the file name is the id when the file has none",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, func(ctx context.Context, a *app.App) error {
			for _, path := range args {
				tree, err := a.Documents().ImportFile(ctx, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%s)\n", tree.ID, tree.Title)
			}
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <document-id>",
	Short: "Print a document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toFile, _ := cmd.Flags().GetBool("to-file")
		return runApp(cmd, func(ctx context.Context, a *app.App) error {
			if toFile {
				path, err := a.Documents().ExportToFile(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
				return err
			}
			data, err := a.Documents().ExportDocument(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish [document-id]",
	Short: "Publish one document, or all documents when no id is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, _ := cmd.Flags().GetStringSlice("target")
		docID := ""
		if len(args) == 1 {
			docID = args[0]
		}
		return runApp(cmd, func(ctx context.Context, a *app.App) error {
			lines, err := a.Publish(ctx, docID, targets...)
			for _, l := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return err
		})
	},
}
