package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/driveflow/driveflow"
	"github.com/driveflow/driveflow/fileops"
)

var (
	fileToken     string
	fileTokenPath string

	listLimit int
	listOrder string
	listDesc  bool

	showProgress bool
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List files and directories",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "/"
		if len(args) == 1 {
			dir = args[0]
		}
		client, token, err := clientAndToken()
		if err != nil {
			return err
		}
		entries, err := client.ListFiles(cmd.Context(), token, dir, fileops.ListOptions{
			Limit: listLimit,
			Order: listOrder,
			Desc:  listDesc,
		})
		if err != nil {
			return err
		}
		for _, e := range entries {
			kind := "-"
			if e.IsDir {
				kind = "d"
			}
			fmt.Printf("%s %12d  %s  %s\n", kind, e.Size, e.Modified().Format(time.DateTime), e.Path)
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <path>",
	Short: "Show metadata for a remote path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, token, err := clientAndToken()
		if err != nil {
			return err
		}
		entry, err := client.FileInfo(cmd.Context(), token, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("path:     %s\n", entry.Path)
		fmt.Printf("size:     %d\n", entry.Size)
		fmt.Printf("dir:      %t\n", entry.IsDir)
		fmt.Printf("modified: %s\n", entry.Modified().Format(time.RFC3339))
		if entry.MD5 != "" {
			fmt.Printf("md5:      %s\n", entry.MD5)
		}
		return nil
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <remote> <local>",
	Short: "Download a remote file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, token, err := clientAndToken()
		if err != nil {
			return err
		}
		if err := client.DownloadFile(cmd.Context(), token, args[0], args[1], progressBar()); err != nil {
			return err
		}
		fmt.Println("Downloaded", args[0], "to", args[1])
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <local> <remote>",
	Short: "Upload a local file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, token, err := clientAndToken()
		if err != nil {
			return err
		}
		if err := client.UploadFile(cmd.Context(), token, args[0], args[1], progressBar()); err != nil {
			return err
		}
		fmt.Println("Uploaded", args[0], "to", args[1])
		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a remote directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, token, err := clientAndToken()
		if err != nil {
			return err
		}
		return client.Mkdir(cmd.Context(), token, args[0])
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp <source> <dest>",
	Short: "Copy a remote file or directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, token, err := clientAndToken()
		if err != nil {
			return err
		}
		return client.CopyFile(cmd.Context(), token, args[0], args[1])
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <source> <dest>",
	Short: "Move a remote file or directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, token, err := clientAndToken()
		if err != nil {
			return err
		}
		return client.MoveFile(cmd.Context(), token, args[0], args[1])
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a remote file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, token, err := clientAndToken()
		if err != nil {
			return err
		}
		return client.DeleteFile(cmd.Context(), token, args[0])
	},
}

func init() {
	fileCmds := []*cobra.Command{lsCmd, infoCmd, downloadCmd, uploadCmd, mkdirCmd, cpCmd, mvCmd, rmCmd}
	for _, fc := range fileCmds {
		fc.Flags().StringVar(&fileToken, "token", "", "access token")
		fc.Flags().StringVar(&fileTokenPath, "token-file", defaultTokenPath(), "token file to read the access token from")
	}
	lsCmd.Flags().IntVar(&listLimit, "limit", 100, "maximum entries to return")
	lsCmd.Flags().StringVar(&listOrder, "order", "time", "sort order: time, size or name")
	lsCmd.Flags().BoolVar(&listDesc, "desc", true, "sort descending")
	downloadCmd.Flags().BoolVar(&showProgress, "progress", false, "print transfer progress")
	uploadCmd.Flags().BoolVar(&showProgress, "progress", false, "print transfer progress")

	rootCmd.AddCommand(fileCmds...)
}

func clientAndToken() (*driveflow.Client, string, error) {
	c, err := newClient()
	if err != nil {
		return nil, "", err
	}
	token := fileToken
	if token == "" {
		saved, err := readTokenFile(fileTokenPath)
		if err != nil {
			return nil, "", fmt.Errorf("no --token given and %w", err)
		}
		if !saved.Valid() {
			return nil, "", fmt.Errorf("saved token expired at %s, run auth or refresh", saved.ExpiresAt.Format(time.RFC3339))
		}
		token = saved.AccessToken
	}
	return c, token, nil
}

func progressBar() fileops.Progress {
	if !showProgress {
		return nil
	}
	return func(fraction float64, current, total int64) {
		if total > 0 {
			fmt.Printf("\r%6.1f%% (%d/%d bytes)", fraction*100, current, total)
		} else {
			fmt.Printf("\r%d bytes", current)
		}
	}
}
