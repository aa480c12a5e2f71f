package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/docgraph"
	"github.com/brunobiangulo/docgraph/graph"
)

var (
	ingestCommit bool
	ingestOut    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Extract triplets from a document",
	Long: `Ingest parses a document, splits it into overlapping chunks and asks the
extraction model for the triplets in each chunk.

The triplets are written as JSON to --out (stdout by default) so they can be
reviewed or edited and later loaded with "docgraph commit". Pass --commit to
merge them into the graph immediately.

Example:
  docgraph ingest report.pdf --out triplets.json
  docgraph ingest notes.md --commit --backend sqlite --sqlite-path graph.db`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestCommit, "commit", false, "merge the extracted triplets into the graph")
	ingestCmd.Flags().StringVarP(&ingestOut, "out", "o", "-", `triplets output path ("-" for stdout, "" to skip)`)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	engine, err := newEngine(ctx, !ingestCommit)
	if err != nil {
		return err
	}
	defer engine.Close()

	sub, err := engine.SubmitDocument(ctx, filepath.Base(path), data)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "%s: %d characters, %d chunks (%d failed), %d triplets\n",
		sub.Filename, len(sub.DocumentText), sub.ChunkCount, sub.FailedChunks, len(sub.Triplets))

	if ingestOut != "" {
		if err := writeJSON(cmd.OutOrStdout(), ingestOut, sub.Triplets); err != nil {
			return err
		}
	}

	if !ingestCommit || len(sub.Triplets) == 0 {
		return nil
	}
	res, err := engine.CommitGraph(ctx, sub.Triplets)
	if res != nil {
		fmt.Fprintf(stderr, "committed %d of %d triplets\n", res.InsertedCount, len(sub.Triplets))
	}
	return err
}

var commitCmd = &cobra.Command{
	Use:   "commit <triplets.json>",
	Short: "Merge a triplet file into the graph",
	Long: `Commit reads triplets written by "docgraph ingest" (or an /upload_pdf
response) and merges them into the graph. Use "-" to read stdin.

Merging is idempotent: committing the same file twice leaves the graph
unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runCommit,
}

func init() {
	rootCmd.AddCommand(commitCmd)
}

func runCommit(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	triplets, err := decodeTriplets(r)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	engine, err := newEngine(ctx, false)
	if err != nil {
		return err
	}
	defer engine.Close()

	res, err := engine.CommitGraph(ctx, triplets)
	if res != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "committed %d of %d triplets\n", res.InsertedCount, len(triplets))
		for _, f := range res.Failed {
			fmt.Fprintf(cmd.ErrOrStderr(), "  #%d (%s)-[%s]->(%s): %v\n",
				f.Index, f.Triplet.Subject, f.Triplet.Predicate, f.Triplet.Object, f.Err)
		}
	}
	return err
}

// decodeTriplets accepts a bare JSON array or an object carrying the array
// under "triplets" or "extracted_triplets".
func decodeTriplets(r io.Reader) ([]graph.Triplet, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var list []graph.Triplet
	if err := json.Unmarshal(raw, &list); err == nil {
		return nonEmpty(list)
	}

	var wrapped struct {
		Triplets          []graph.Triplet `json:"triplets"`
		ExtractedTriplets []graph.Triplet `json:"extracted_triplets"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding triplets: %w", err)
	}
	if len(wrapped.Triplets) > 0 {
		return wrapped.Triplets, nil
	}
	return nonEmpty(wrapped.ExtractedTriplets)
}

func nonEmpty(t []graph.Triplet) ([]graph.Triplet, error) {
	if len(t) == 0 {
		return nil, fmt.Errorf("%w: file contains no triplets", docgraph.ErrMissingInput)
	}
	return t, nil
}

// writeJSON writes v indented to path, or to stdout when path is "-".
func writeJSON(stdout io.Writer, path string, v any) error {
	if path == "-" {
		return encodeJSON(stdout, v)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeJSON(f, v); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
