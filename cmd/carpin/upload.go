package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"xdao.co/carpin/config"
	"xdao.co/carpin/db"
	"xdao.co/carpin/internal/app"
	"xdao.co/carpin/internal/logger"
	"xdao.co/carpin/upload"
)

type uploadOptions struct {
	kind      string
	structure string
	userID    string
	keyID     string
	mimeType  string
	name      string
	meta      map[string]string
}

func newUploadCmd(g *globalOptions) *cobra.Command {
	var o uploadOptions
	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload an archive, a blob, or several files",
		Long: `upload validates and submits content through the configured pinner and
backup, then records it in the database and prints the record.

  --type car    the file is a CAR archive (default)
  --type blob   the file is packed as a single UnixFS file
  --type files  every file becomes an entry of a directory`,
		Args: args(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			if o.kind != "files" && len(a) != 1 {
				return usageError{fmt.Errorf("--type %s takes exactly one file", o.kind)}
			}
			hint, err := parseStructure(o.structure)
			if err != nil {
				return err
			}

			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			log, closeLog, err := logger.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx := cmd.Context()
			svc, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			var meta map[string]any
			if len(o.meta) > 0 {
				meta = make(map[string]any, len(o.meta))
				for k, v := range o.meta {
					meta[k] = v
				}
			}

			var rec *db.Upload
			switch o.kind {
			case "car":
				data, err := os.ReadFile(a[0])
				if err != nil {
					return err
				}
				rec, err = svc.Coordinator.UploadCar(ctx, upload.CarInput{
					Car:       data,
					Type:      db.UploadTypeCar,
					Structure: hint,
					MimeType:  orDefault(o.mimeType, "application/car"),
					Name:      o.name,
					UserID:    o.userID,
					KeyID:     o.keyID,
					Meta:      meta,
				})
				if err != nil {
					return err
				}
			case "blob":
				data, err := os.ReadFile(a[0])
				if err != nil {
					return err
				}
				rec, err = svc.Coordinator.UploadBlob(ctx, upload.BlobInput{
					Data:     data,
					MimeType: orDefault(o.mimeType, mimeOf(a[0])),
					Name:     orDefault(o.name, filepath.Base(a[0])),
					UserID:   o.userID,
					KeyID:    o.keyID,
					Meta:     meta,
				})
				if err != nil {
					return err
				}
			case "files":
				files := make([]upload.File, 0, len(a))
				for _, p := range a {
					data, err := os.ReadFile(p)
					if err != nil {
						return err
					}
					files = append(files, upload.File{Name: filepath.Base(p), Type: mimeOf(p), Data: data})
				}
				rec, err = svc.Coordinator.UploadFiles(ctx, upload.FilesInput{
					Files:  files,
					Name:   o.name,
					UserID: o.userID,
					KeyID:  o.keyID,
					Meta:   meta,
				})
				if err != nil {
					return err
				}
			default:
				return usageError{fmt.Errorf("invalid --type %q", o.kind)}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.kind, "type", "car", "input kind: car, blob or files")
	f.StringVar(&o.structure, "structure", "", "structure hint for archives: Complete, Partial or Unknown")
	f.StringVar(&o.userID, "user", "", "owning user id")
	f.StringVar(&o.keyID, "key", "", "api key id")
	f.StringVar(&o.mimeType, "mime-type", "", "mime type to record")
	f.StringVar(&o.name, "name", "", "name to record")
	f.StringToStringVar(&o.meta, "meta", nil, "metadata as key=value pairs")
	return cmd
}

func mimeOf(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
