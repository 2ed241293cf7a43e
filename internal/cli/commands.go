package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/markdave123-py/studyvault/internal/app"
	"github.com/markdave123-py/studyvault/internal/models"
	"github.com/spf13/cobra"
)

type runner func(run func(ctx context.Context, c *app.Components, out io.Writer) error) func(*cobra.Command, []string) error

type documentFlags struct {
	itemID   int64
	userID   int64
	userName string
	title    string
}

func (f *documentFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.itemID, "item", 0, "library item id (required)")
	cmd.Flags().Int64Var(&f.userID, "user", 0, "owning user id")
	cmd.Flags().StringVar(&f.userName, "user-name", "", "owning user name")
	cmd.Flags().StringVar(&f.title, "title", "", "document title")
	_ = cmd.MarkFlagRequired("item")
}

func (f *documentFlags) document(source string) models.Document {
	return models.Document{
		LibraryItemID: f.itemID,
		UserID:        f.userID,
		UserName:      f.userName,
		Title:         f.title,
		SourceURL:     source,
	}
}

func newIngestCommand(with runner) *cobra.Command {
	ingest := &cobra.Command{
		Use:   "ingest",
		Short: "Run a document through the ingestion pipeline",
	}

	var pdf documentFlags
	pdfCmd := &cobra.Command{
		Use:   "pdf <path-or-s3-url>",
		Short: "Extract, chunk, embed and index a PDF",
		Args:  cobra.ExactArgs(1),
	}
	pdf.register(pdfCmd)
	pdfCmd.RunE = func(cmd *cobra.Command, args []string) error {
		source := args[0]
		if pdf.title == "" {
			base := filepath.Base(source)
			pdf.title = strings.TrimSuffix(base, filepath.Ext(base))
		}
		return with(func(ctx context.Context, c *app.Components, out io.Writer) error {
			return printEnvelope(out, c.Ingestor.ProcessPDF(ctx, pdf.document(source)))
		})(cmd, args)
	}

	var yt documentFlags
	ytCmd := &cobra.Command{
		Use:   "youtube <url>",
		Short: "Fetch, chunk, embed and index a video transcript",
		Args:  cobra.ExactArgs(1),
	}
	yt.register(ytCmd)
	ytCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return with(func(ctx context.Context, c *app.Components, out io.Writer) error {
			return printEnvelope(out, c.Ingestor.ProcessYouTube(ctx, yt.document(args[0])))
		})(cmd, args)
	}

	ingest.AddCommand(pdfCmd, ytCmd)
	return ingest
}

func newDeleteCommand(with runner) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "delete <library-item-id>",
		Short: "Remove a user's indexed chunks and stored file for a library item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("library item id %q is not a number", args[0])
			}
			return with(func(ctx context.Context, c *app.Components, out io.Writer) error {
				return printEnvelope(out, c.Service.Delete(ctx, id, userID))
			})(cmd, args)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user who owns the item (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSearchCommand(with runner) *cobra.Command {
	var userID int64
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search one user's indexed chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return with(func(ctx context.Context, c *app.Components, out io.Writer) error {
				return printEnvelope(out, c.Ingestor.Search(ctx, query, userID, limit))
			})(cmd, args)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user whose documents are searched (required)")
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum number of hits")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newTranscriptCommand(with runner) *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <url>",
		Short: "Print a video transcript without indexing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return with(func(ctx context.Context, c *app.Components, out io.Writer) error {
				return printEnvelope(out, c.Ingestor.FetchTranscript(ctx, args[0]))
			})(cmd, args)
		},
	}
}
