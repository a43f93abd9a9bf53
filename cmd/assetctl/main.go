// Command assetctl manages the default (read-only) asset tree: it copies
// curated recordings, DBC databases, demo layouts, and demo scripts into
// {root}/default/{category}/ and registers them in the file store, so a
// deployment can be seeded without touching the server.
//
// Usage:
//
//	assetctl --root ./data/storage --db ./data/signalstudio.db install mf4 capture1.mf4 capture2.mf4
//	assetctl --root ./data/storage --db ./data/signalstudio.db register
//	assetctl --root ./data/storage --db ./data/signalstudio.db reconcile
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/fieldtrace/signalstudio/internal/dbx"
	"github.com/fieldtrace/signalstudio/internal/logger"
	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/fieldtrace/signalstudio/internal/storage"
)

var (
	rootDir = flag.String("root", "./data/storage", "storage root directory")
	dbPath  = flag.String("db", "./data/signalstudio.db", "path to the SQLite database")
	quiet   = flag.BoolP("quiet", "q", false, "suppress progress output")
)

func main() {
	flag.Usage = usage
	flag.Parse()
	logger.Initialize("warn", true)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	store, cleanup, err := openStore()
	if err != nil {
		fail("open store: %v", err)
	}
	defer cleanup()

	switch args[0] {
	case "install":
		if len(args) < 3 {
			fail("install requires a category and at least one file")
		}
		runInstall(store, models.Category(args[1]), args[2:])
	case "register":
		runRegister(store)
	case "reconcile":
		runReconcile(store)
	default:
		fail("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: assetctl [flags] <install <category> <file>... | register | reconcile>\n")
	flag.PrintDefaults()
}

func openStore() (*storage.Store, func(), error) {
	database, err := dbx.NewDatabase(dbx.Config{Path: *dbPath})
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, nil, err
	}
	store := storage.New(dbx.NewFileDB(database.DB()), storage.Config{Root: *rootDir})
	return store, func() { database.Close() }, nil
}

// runInstall copies each file into the default tree for its category and
// then registers whatever is new.
func runInstall(store *storage.Store, category models.Category, paths []string) {
	destDir := filepath.Join(*rootDir, "default", string(category))
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		fail("create %s: %v", destDir, err)
	}

	for _, src := range paths {
		if err := copyWithProgress(src, filepath.Join(destDir, filepath.Base(src))); err != nil {
			fail("install %s: %v", src, err)
		}
	}

	runRegister(store)
}

func copyWithProgress(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	var w io.Writer = out
	if !*quiet {
		bar := progressbar.DefaultBytes(info.Size(), filepath.Base(src))
		w = io.MultiWriter(out, bar)
	}
	if _, err := io.Copy(w, in); err != nil {
		os.Remove(dst)
		return err
	}
	return out.Sync()
}

func runRegister(store *storage.Store) {
	n, err := store.RegisterDefaults(context.Background())
	if err != nil {
		fail("register defaults: %v", err)
	}
	color.Green("✓ %d new default asset(s) registered", n)
}

func runReconcile(store *storage.Store) {
	n, err := store.ReconcileAll(context.Background())
	if err != nil {
		fail("reconcile: %v", err)
	}
	color.Green("✓ %d orphaned row(s) removed", n)
}

func fail(format string, args ...any) {
	color.Red("✗ "+format, args...)
	os.Exit(1)
}
