package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"hmdoc/internal/domain"
	"hmdoc/internal/inline"
)

func init() {
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(encodeCmd)
}

var decodeCmd = &cobra.Command{
	Use:   "decode [block.json]",
	Short: "Decode a block into styled runs",
	Long: `Reads a block ({"text", "annotations"}) from a file, or stdin when the
file is omitted or "-", and prints its styled runs as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := codecFromFlags(cmd)
		if err != nil {
			return err
		}
		var b domain.Block
		if err := readJSON(cmd, args, &b); err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), codec.Decode(b))
	},
}

var encodeCmd = &cobra.Command{
	Use:   "encode [runs.json]",
	Short: "Encode styled runs into block text and annotations",
	Long: `Reads a JSON array of styled runs from a file, or stdin when the file is
omitted or "-", and prints {"text", "annotations"}.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := codecFromFlags(cmd)
		if err != nil {
			return err
		}
		var runs []domain.StyledRun
		if err := readJSON(cmd, args, &runs); err != nil {
			return err
		}
		text, annotations := codec.Encode(runs)
		if annotations == nil {
			annotations = []domain.Annotation{}
		}
		return writeJSON(cmd.OutOrStdout(), domain.Block{Text: text, Annotations: annotations})
	},
}

// codecFromFlags builds a codec without opening the database.
func codecFromFlags(cmd *cobra.Command) (*inline.Codec, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return inline.New(inline.WithOffsetUnit(cfg.Unit())), nil
}

func readJSON(cmd *cobra.Command, args []string, v any) error {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
