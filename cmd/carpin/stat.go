package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"xdao.co/carpin/carstat"
	"xdao.co/carpin/cidutil"
)

type statOutput struct {
	Root      string            `json:"root"`
	RootV1    string            `json:"root_v1"`
	Size      *uint64           `json:"size,omitempty"`
	SizeHuman string            `json:"size_human,omitempty"`
	Structure carstat.Structure `json:"structure"`
	Blocks    int               `json:"blocks"`
}

func newStatCmd() *cobra.Command {
	var structure string
	cmd := &cobra.Command{
		Use:   "stat <file.car>",
		Short: "Validate an archive and print its root, size and structure",
		Args:  args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			hint, err := parseStructure(structure)
			if err != nil {
				return err
			}
			f, err := os.Open(a[0])
			if err != nil {
				return err
			}
			defer f.Close()

			stat, err := carstat.New().ValidateReader(f, hint)
			if err != nil {
				if r := carstat.ReasonOf(err); r != "" {
					return fmt.Errorf("invalid archive (%s): %w", r, err)
				}
				return err
			}
			res := statOutput{
				Root:      stat.Root.String(),
				RootV1:    cidutil.V1(stat.Root).String(),
				Size:      stat.Size,
				Structure: stat.Structure,
				Blocks:    stat.Blocks,
			}
			if stat.Size != nil {
				res.SizeHuman = humanize.IBytes(*stat.Size)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&structure, "structure", string(carstat.Unknown), "structure hint: Complete, Partial or Unknown")
	return cmd
}

func parseStructure(s string) (carstat.Structure, error) {
	switch carstat.Structure(s) {
	case carstat.Complete, carstat.Partial, carstat.Unknown:
		return carstat.Structure(s), nil
	case "":
		return carstat.Unknown, nil
	default:
		return "", usageError{fmt.Errorf("invalid structure %q", s)}
	}
}
