package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"xdao.co/carpin/pack"
)

func newPackCmd() *cobra.Command {
	var (
		output string
		wrap   bool
		opts   pack.Options
	)
	cmd := &cobra.Command{
		Use:   "pack <file> [file...]",
		Short: "Pack files into a CAR archive and print the root CID",
		Long: `pack builds a UnixFS DAG with raw leaves. A single file is packed as
is unless --wrap is given; several files always become a directory.`,
		Args: args(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			var (
				res *pack.Result
				err error
			)
			if len(a) == 1 && !wrap {
				data, rerr := os.ReadFile(a[0])
				if rerr != nil {
					return rerr
				}
				res, err = pack.Blob(data, opts)
			} else {
				files := make([]pack.File, 0, len(a))
				for _, p := range a {
					data, rerr := os.ReadFile(p)
					if rerr != nil {
						return rerr
					}
					files = append(files, pack.File{Name: filepath.Base(p), Data: data})
				}
				res, err = pack.Directory(files, opts)
			}
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(res.Car)
				return err
			}
			if err := os.WriteFile(output, res.Car, 0o644); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Root)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the archive here instead of stdout")
	cmd.Flags().BoolVar(&wrap, "wrap", false, "wrap a single file in a directory")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", pack.DefaultChunkSize, "leaf size in bytes")
	cmd.Flags().IntVar(&opts.MaxLinks, "max-links", pack.DefaultMaxLinks, "maximum links per node")
	return cmd
}
