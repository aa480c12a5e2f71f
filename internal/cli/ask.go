package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/docgraph"
)

var askDoc string

var askCmd = &cobra.Command{
	Use:   "ask --doc <file> <question>",
	Short: "Answer a question from a document",
	Long: `Ask parses a document and answers a single question using only its text.
The graph is not used.

Example:
  docgraph ask --doc report.pdf "Who founded Acme?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var chatCmd = &cobra.Command{
	Use:   "chat --doc <file>",
	Short: "Interactive question answering over a document",
	Long: `Chat parses a document once, then answers questions read line by line
from stdin. An empty line or "exit" ends the session.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	askCmd.Flags().StringVar(&askDoc, "doc", "", "document to answer from")
	chatCmd.Flags().StringVar(&askDoc, "doc", "", "document to answer from")
}

// loadDocument builds a graph-less engine and extracts the text of askDoc.
func loadDocument(cmd *cobra.Command) (docgraph.Engine, string, error) {
	var data []byte
	if askDoc != "" {
		b, err := os.ReadFile(askDoc)
		if err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", askDoc, err)
		}
		data = b
	}

	engine, err := newEngine(cmd.Context(), true)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		// Ask still answers, with the upload prompt.
		return engine, "", nil
	}
	text, err := engine.DocumentText(cmd.Context(), filepath.Base(askDoc), data)
	if err != nil {
		engine.Close()
		return nil, "", err
	}
	return engine, text, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	cmd.SetContext(ctx)

	engine, text, err := loadDocument(cmd)
	if err != nil {
		return err
	}
	defer engine.Close()

	answer, err := engine.Ask(ctx, strings.Join(args, " "), text)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	cmd.SetContext(ctx)

	engine, text, err := loadDocument(cmd)
	if err != nil {
		return err
	}
	defer engine.Close()

	out := cmd.OutOrStdout()
	if text != "" {
		fmt.Fprintf(out, "Loaded %s (%d characters). Ask a question, or press Enter to quit.\n",
			filepath.Base(askDoc), len(text))
	}

	sc := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		q := strings.TrimSpace(sc.Text())
		if q == "" || q == "exit" || q == "quit" {
			return nil
		}

		answer, err := engine.Ask(ctx, q, text)
		if err != nil {
			// Keep the session alive; one failed call is not fatal.
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, answer.Text)
	}
}
