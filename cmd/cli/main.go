package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"constella/internal/audio"
	"constella/internal/fingerprint"
	"constella/internal/service"
	"constella/internal/storage"
	"constella/pkg/logger"
)

func main() {
	// .env is optional; missing file is fine
	_ = godotenv.Load()
	log := logger.Default()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "index":
		err = runIndex(args)
	case "match":
		err = runMatch(args)
	case "list":
		err = runList(args)
	case "clips":
		err = runClips(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Errorf("%s failed: %+v", command, xerrors.New(err))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage:
  constella index <dir>  [-artist name] [-workers N] [-db path] [-backend sqlite|badger]
  constella match <file> [-db path] [-backend sqlite|badger]
  constella list         [-db path] [-backend sqlite|badger]
  constella clips <file> [-n 20] [-seconds 5] [-db path] [-backend sqlite|badger]

Environment: CONSTELLA_DB_PATH, CONSTELLA_BACKEND, LOG_LEVEL (and .env is honored).`)
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// storageFlags registers the flags shared by every command.
func storageFlags(cmd *flag.FlagSet) (dbPath, backend *string) {
	dbPath = cmd.String("db", getEnvOrDefault("CONSTELLA_DB_PATH", "constella.sqlite3"), "database path (file for sqlite, directory for badger)")
	backend = cmd.String("backend", getEnvOrDefault("CONSTELLA_BACKEND", "sqlite"), "storage backend: sqlite or badger")
	return
}

func openBackend(kind, path string) (storage.Backend, error) {
	switch kind {
	case "sqlite":
		return storage.NewSQLite(path)
	case "badger":
		return storage.NewBadger(path)
	default:
		return nil, fmt.Errorf("unknown backend %q (want sqlite or badger)", kind)
	}
}

func openService(kind, path string) (*service.Service, error) {
	backend, err := openBackend(kind, path)
	if err != nil {
		return nil, err
	}
	svc, err := service.New(service.WithBackend(backend))
	if err != nil {
		backend.Close()
		return nil, err
	}
	return svc, nil
}

func runIndex(args []string) error {
	cmd := flag.NewFlagSet("index", flag.ExitOnError)
	dbPath, backend := storageFlags(cmd)
	artist := cmd.String("artist", "Unknown Artist", "artist name for every indexed file")
	workers := cmd.Int("workers", 0, "concurrent fingerprint workers (0 = auto)")
	cmd.Parse(args)

	if cmd.NArg() < 1 {
		return fmt.Errorf("missing directory argument")
	}
	root := cmd.Arg(0)

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".wav") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", root, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no .wav files under %s", root)
	}

	svc, err := openService(*backend, *dbPath)
	if err != nil {
		return err
	}
	defer svc.Close()

	w := *workers
	if w <= 0 {
		w = runtime.NumCPU() - 1
		if w < 2 {
			w = 2
		}
	}

	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(len(files)),
		mpb.PrependDecorators(
			decor.Name("Indexing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)

	type result struct {
		path   string
		groups []fingerprint.Group
		err    error
	}

	ctx := context.Background()
	jobs := make(chan string, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	for i := 0; i < w; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				buf, err := audio.ReadWAV(path)
				if err != nil {
					results <- result{path: path, err: err}
					continue
				}
				groups, err := svc.Fingerprint(ctx, buf)
				results <- result{path: path, groups: groups, err: err}
			}
		}()
	}
	for _, f := range files {
		jobs <- f
	}
	close(jobs)
	go func() {
		wg.Wait()
		close(results)
	}()

	indexed, failed := 0, 0
	start := time.Now()
	last := start
	for r := range results {
		now := time.Now()
		bar.EwmaIncrement(now.Sub(last))
		last = now
		if r.err != nil {
			logger.Warnf("skipping %s: %v", r.path, r.err)
			failed++
			continue
		}
		name := strings.TrimSuffix(filepath.Base(r.path), filepath.Ext(r.path))
		svc.Register(name, *artist, r.groups)
		indexed++
	}
	p.Wait()

	if indexed == 0 {
		return fmt.Errorf("all %d files failed to index", failed)
	}
	if err := svc.Save(); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	fmt.Printf("Indexed %d songs (%d failed) in %s\n", indexed, failed, time.Since(start).Round(time.Millisecond))
	return nil
}

func runMatch(args []string) error {
	cmd := flag.NewFlagSet("match", flag.ExitOnError)
	dbPath, backend := storageFlags(cmd)
	cmd.Parse(args)

	if cmd.NArg() < 1 {
		return fmt.Errorf("missing audio file argument")
	}

	svc, err := openService(*backend, *dbPath)
	if err != nil {
		return err
	}
	defer svc.Close()

	buf, err := audio.ReadWAV(cmd.Arg(0))
	if err != nil {
		return err
	}

	outcome, err := svc.Match(context.Background(), buf)
	if err != nil {
		return err
	}
	if !outcome.Found {
		fmt.Println("No match found.")
		return nil
	}
	fmt.Printf("Match: %s by %s (song %d, %d votes, clip starts %.2fs into the song)\n",
		outcome.Song.Name, outcome.Song.Artist, outcome.Song.ID, outcome.Votes, outcome.OffsetSeconds)
	return nil
}

func runList(args []string) error {
	cmd := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath, backend := storageFlags(cmd)
	cmd.Parse(args)

	svc, err := openService(*backend, *dbPath)
	if err != nil {
		return err
	}
	defer svc.Close()

	catalog := svc.Songs()
	fmt.Printf("Total songs in the catalog:   %d\n", len(catalog))
	fmt.Printf("Unique artists in the catalog: %d\n\n", len(catalog.Artists()))
	for _, song := range catalog {
		fmt.Printf("\tID: %4d - %s by %s\n", song.ID, song.Name, song.Artist)
	}
	return nil
}

// runClips is an evaluation aid: cut random fixed-length clips out of a
// recording and check how many of them still match.
func runClips(args []string) error {
	cmd := flag.NewFlagSet("clips", flag.ExitOnError)
	dbPath, backend := storageFlags(cmd)
	n := cmd.Int("n", 20, "number of random clips")
	seconds := cmd.Float64("seconds", 5, "clip length in seconds")
	cmd.Parse(args)

	if cmd.NArg() < 1 {
		return fmt.Errorf("missing audio file argument")
	}

	svc, err := openService(*backend, *dbPath)
	if err != nil {
		return err
	}
	defer svc.Close()

	buf, err := audio.ReadWAV(cmd.Arg(0))
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	clips, err := audio.RandomClips(buf, *n, *seconds, rng)
	if err != nil {
		return err
	}

	ctx := context.Background()
	hits := 0
	for i, clip := range clips {
		outcome, err := svc.Match(ctx, clip)
		if err != nil {
			return err
		}
		if outcome.Found {
			hits++
			fmt.Printf("clip %2d: %s by %s (%d votes)\n", i, outcome.Song.Name, outcome.Song.Artist, outcome.Votes)
		} else {
			fmt.Printf("clip %2d: no match\n", i)
		}
	}
	fmt.Printf("%d/%d clips matched\n", hits, len(clips))
	return nil
}
