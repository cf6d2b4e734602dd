package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"wakareadme/internal/docstore"
	"wakareadme/internal/section"
)

var (
	sectionName string
	blockFile   string
)

var patchCmd = &cobra.Command{
	Use:   "patch <document>",
	Short: "Replace a marked section of a local document",
	Long: "Replace the text between <!--START_SECTION:name--> and <!--END_SECTION:name--> " +
		"with the contents of --block (or stdin when --block is '-' or empty).",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		block, err := readBlock(cmd.InOrStdin(), blockFile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		path := args[0]
		store := docstore.NewFSStore(filepath.Dir(path))
		name := filepath.Base(path)

		doc, err := store.Load(cmd.Context(), name)
		if err != nil {
			return err
		}
		start, end := section.Markers(sectionName)
		res, err := section.Apply(doc, start, end, section.MatchLineEndings(doc, block))
		if err != nil {
			if names := section.Names(doc); errors.Is(err, section.ErrMarkerNotFound) && len(names) > 0 {
				fmt.Fprintf(out, "💡 Sections found in %s: %s\n", path, strings.Join(names, ", "))
			}
			return fmt.Errorf("failed to patch %s: %w", path, err)
		}
		if !res.Changed {
			fmt.Fprintln(out, "✅ No changes detected.")
			return nil
		}
		if err := store.Save(cmd.Context(), name, res.Document); err != nil {
			return err
		}
		fmt.Fprintf(out, "📝 Updated section %q of %s.\n", sectionName, path)
		return nil
	},
}

func init() {
	patchCmd.Flags().StringVarP(&sectionName, "section", "s", "waka", "Section name used in the markers")
	patchCmd.Flags().StringVarP(&blockFile, "block", "b", "", "File holding the replacement block ('-' for stdin)")
}

// readBlock loads the replacement block. The final line break that editors
// and echo append is dropped.
func readBlock(stdin io.Reader, path string) (string, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read block: %w", err)
	}
	block := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(block, "\r"), nil
}
