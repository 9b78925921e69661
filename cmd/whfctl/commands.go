package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"woodheaven_farms/internal/adapters/localauth"
	"woodheaven_farms/internal/app"
	"woodheaven_farms/internal/domain"
	"woodheaven_farms/internal/platform"
	"woodheaven_farms/internal/shared"
)

// importBatchSize matches the per-request limit of the admin API.
const importBatchSize = 50

type App struct {
	cfg shared.Config
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "whfctl",
		Short:        "Operator tool for the Wood Heaven Farms backend",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newSeedCmd(app),
		newImportCmd(app),
		newAdminCmd(app),
	)
	return cmd
}

func newSeedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write the default amenities, testimonials, FAQs and settings into empty tables",
		Args:  cobra.NoArgs,
		RunE:  app.handleSeed,
	}
}

func newImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Upload every image in a folder to the gallery. Subfolders named after a category set the category",
		Args:  cobra.ExactArgs(1),
		RunE:  app.handleImport,
	}
	cmd.Flags().String("category", domain.DefaultGalleryCategory, "category for images outside a category folder")
	cmd.Flags().Int("parallel", 2, "batches uploading at once")
	return cmd
}

func newAdminCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the admin allow-list",
	}
	add := &cobra.Command{
		Use:   "add <email>",
		Short: "Allow an email into the admin panel. --password also sets a local login",
		Args:  cobra.ExactArgs(1),
		RunE:  app.handleAdminAdd,
	}
	add.Flags().String("password", "", "password for self-hosted (MySQL) deployments")
	cmd.AddCommand(add)
	return cmd
}

func (a *App) open(ctx context.Context) (*platform.Backend, error) {
	b, err := platform.Open(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	if a.cfg.Backend == shared.BackendMemory {
		log.Warn().Msg("memory backend: changes are discarded when whfctl exits")
	}
	return b, nil
}

func (a *App) handleSeed(cmd *cobra.Command, args []string) error {
	b, err := a.open(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	if err := app.Seed(cmd.Context(), b.Records); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "seed complete")
	return nil
}

func (a *App) handleAdminAdd(cmd *cobra.Command, args []string) error {
	password, _ := cmd.Flags().GetString("password")
	b, err := a.open(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	var hash string
	if password != "" {
		if a.cfg.Backend == shared.BackendSupabase {
			return fmt.Errorf("--password is for self-hosted deployments; create the login in Supabase Auth instead")
		}
		if hash, err = localauth.HashPassword(password); err != nil {
			return err
		}
	}
	if err := app.NewAuthService(b.Auth, b.Records).AddAdmin(cmd.Context(), args[0], hash); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s added to admin_users\n", strings.ToLower(args[0]))
	return nil
}

func (a *App) handleImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	category, _ := cmd.Flags().GetString("category")
	parallel, _ := cmd.Flags().GetInt("parallel")
	if parallel <= 0 {
		parallel = 1
	}

	files, err := collectImages(args[0], category)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images found in %s", args[0])
	}

	b, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	queue := app.NewUploadQueue(b.Records, b.Objects, b.Cache, app.UploadQueueConfig{
		Concurrency: a.cfg.UploadConcurrency,
		MaxBytes:    a.cfg.UploadMaxBytes,
		Retention:   time.Minute,
	})
	defer queue.Close(context.WithoutCancel(ctx))

	log.Info().Int("files", len(files)).Int("parallel", parallel).Msg("import starting")

	sem := semaphore.NewWeighted(int64(parallel))
	var (
		wg                sync.WaitGroup
		mu                sync.Mutex
		completed, failed int
	)
	for start := 0; start < len(files); start += importBatchSize {
		chunk := files[start:min(start+importBatchSize, len(files))]

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(chunk []importFile) {
			defer wg.Done()
			defer sem.Release(1)

			ok, bad := importChunk(ctx, queue, chunk)
			mu.Lock()
			completed += ok
			failed += bad
			mu.Unlock()
		}(chunk)
	}
	wg.Wait()

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d, failed %d\n", completed, failed)
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(files))
	}
	return nil
}

type importFile struct {
	path     string
	category string
}

// collectImages walks dir. Files directly inside a folder named after a
// gallery category take that category; everything else gets def.
func collectImages(dir, def string) ([]importFile, error) {
	var out []importFile
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		cat := def
		if parent := filepath.Base(filepath.Dir(p)); domain.IsGalleryCategory(parent) {
			cat = parent
		}
		out = append(out, importFile{path: p, category: cat})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}

func importChunk(ctx context.Context, q *app.UploadQueue, chunk []importFile) (int, int) {
	uploads := make([]app.UploadFile, 0, len(chunk))
	for _, f := range chunk {
		fh, err := os.Open(f.path)
		if err != nil {
			log.Warn().Err(err).Str("file", f.path).Msg("skipping unreadable file")
			continue
		}
		defer fh.Close()
		uploads = append(uploads, app.UploadFile{Filename: filepath.Base(f.path), Category: f.category, Body: fh})
	}
	if len(uploads) == 0 {
		return 0, len(chunk)
	}
	skipped := len(chunk) - len(uploads)

	batch, err := q.Enqueue(ctx, uploads, "")
	if err != nil {
		log.Error().Err(err).Msg("enqueue failed")
		return 0, len(chunk)
	}
	done, err := q.Wait(ctx, batch.ID)
	if err != nil {
		log.Error().Err(err).Str("batch", batch.ID).Msg("batch interrupted")
		return 0, len(chunk)
	}
	for _, j := range done.Jobs {
		if j.Status == domain.JobError {
			log.Warn().Str("file", j.Filename).Str("error", j.Error).Msg("image not imported")
		}
	}
	c := done.Counts()
	return c[domain.JobCompleted], c[domain.JobError] + skipped
}
