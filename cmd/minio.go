package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"pitaradio/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioStats  bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Check the MinIO bucket and list uploaded audio",
	Example: `  # list everything
  pitaradio minio

  # only one genre
  pitaradio minio -p rock/

  # totals only
  pitaradio minio -s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.MinioEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is not set")
		}
		fmt.Printf("MinIO: %s, bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewMinioStore(cmd.Context(), storage.MinioOptions{
			Endpoint:   cfg.MinioEndpoint,
			AccessKey:  cfg.MinioAccessKey,
			SecretKey:  cfg.MinioSecretKey,
			Bucket:     cfg.MinioBucket,
			Region:     cfg.MinioRegion,
			UseSSL:     cfg.MinioUseSSL,
			PublicBase: cfg.MinioPublicBase,
		})
		if err != nil {
			return err
		}

		objects, err := store.List(cmd.Context(), minioPrefix)
		if err != nil {
			return err
		}

		var total int64
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		if !minioStats {
			fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED")
		}
		for _, obj := range objects {
			total += obj.Size
			if !minioStats {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04"))
			}
		}
		tw.Flush()
		fmt.Printf("%d objects, %s\n", len(objects), storage.FormatSize(total))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "only list keys with this prefix")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "print totals only")
}
