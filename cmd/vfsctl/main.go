package main

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/urfave/cli/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/codehaven/backend/internal/archive"
	"github.com/codehaven/backend/internal/infrastructure/logging"
	"github.com/codehaven/backend/internal/storage"
	"github.com/codehaven/backend/internal/vfs"
	"github.com/codehaven/backend/internal/workspace"
)

func main() {
	app := &cli.App{
		Name:  "vfsctl",
		Usage: "inspect and transfer CodeHaven workspace filesystems",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Usage: "path to the workspace database",
				Value: "data/workspaces.db",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "import a host directory into a workspace",
				ArgsUsage: "<directory>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "workspace",
						Usage: "workspace ID (a new one is minted when empty)",
					},
					&cli.StringFlag{
						Name:  "target",
						Usage: "workspace directory to import into",
						Value: vfs.Root,
					},
				},
				Action: runImport,
			},
			{
				Name:      "export",
				Usage:     "export a workspace as a gzip-compressed tar archive",
				ArgsUsage: "<workspace-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "output file (defaults to workspace-<id>-<time>.tar.gz)",
					},
				},
				Action: runExport,
			},
			{
				Name:      "ls",
				Usage:     "list every path in a workspace",
				ArgsUsage: "<workspace-id>",
				Action:    runList,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openWorkspace opens the database and restores one workspace tree.
func openWorkspace(c *cli.Context, id string) (*vfs.FileSystem, *bolt.DB, error) {
	db, err := storage.Open(c.String("db"))
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewBolt(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	fsys := vfs.New(id, store, vfs.WithLogger(logging.NewNop()))
	if err := fsys.Initialize(c.Context); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to open workspace %s: %w", id, err)
	}
	return fsys, db, nil
}

func runImport(c *cli.Context) error {
	root := c.Args().First()
	if root == "" {
		return cli.Exit("usage: vfsctl import <directory>", 1)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	id := c.String("workspace")
	if id == "" {
		id = workspace.NewID()
	}
	if err := workspace.ValidateID(id); err != nil {
		return err
	}

	fsys, db, err := openWorkspace(c, id)
	if err != nil {
		return err
	}
	defer db.Close()

	target := c.String("target")
	// fastwalk runs the callback from multiple goroutines.
	var count atomic.Int64
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := c.Context.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		dest, err := vfs.Resolve(target, filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("cannot map %s into workspace: %w", rel, err)
		}

		if d.IsDir() {
			if fsys.IsDirectory(dest) {
				return nil
			}
			return fsys.CreateFolderSilent(dest)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		count.Add(1)
		if vfs.IsBinaryPath(dest) {
			return fsys.WriteBinaryFileSilent(dest, content)
		}
		return fsys.CreateFileSilent(dest, string(content))
	})
	if err != nil {
		return err
	}

	if err := fsys.CommitBatch(c.Context); err != nil {
		return fmt.Errorf("failed to persist imported files: %w", err)
	}
	fmt.Printf("imported %d files into workspace %s\n", count.Load(), id)
	return nil
}

func runExport(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return cli.Exit("usage: vfsctl export <workspace-id>", 1)
	}

	fsys, db, err := openWorkspace(c, id)
	if err != nil {
		return err
	}
	defer db.Close()

	output := c.String("output")
	if output == "" {
		output = fmt.Sprintf("workspace-%s-%s.tar.gz", id, archive.Timestamp(time.Now()))
	}
	out, err := os.Create(output)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := archive.Export(fsys, out); err != nil {
		return err
	}
	fmt.Printf("exported workspace %s to %s\n", id, output)
	return nil
}

func runList(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return cli.Exit("usage: vfsctl ls <workspace-id>", 1)
	}

	fsys, db, err := openWorkspace(c, id)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, info := range fsys.Manifest() {
		marker := ""
		if info.Type == vfs.NodeDirectory {
			marker = "/"
		}
		fmt.Printf("%s%s\n", info.Path, marker)
	}
	return nil
}
